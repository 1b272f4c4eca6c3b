// Package vault implements password-authenticated access control for a shared
// balance ledger, where authentication is proved in zero knowledge.
//
// Overview:
//   - A username is bound to a secret credential at registration; every
//     transition that moves funds out of that username's balance must carry a
//     Groth16 proof of knowledge of the credential, bound to a single-use nonce
//   - Commitments are MiMC hashes over the BN254 scalar field: an identity
//     commitment H(username), a credential commitment H(username, password),
//     and a freshness tag H(credentialHash, nonce)
//   - The ledger is a sequential state machine: register, deposit, pay and
//     withdraw are applied as atomic steps under one mutex, and every consumed
//     freshness tag is recorded so a proof can never authorize twice
//
// Security Model:
//   - Uses MiMC (gnark-crypto, BN254 fr) for all commitments
//   - Zero-knowledge proofs are generated and verified using gnark (Groth16, BN254)
//   - Proving and verifying are injected through the narrow Prover and Verifier
//     interfaces, so the ledger logic is testable against a fixture backend
//   - Deposits require no proof (funding an account reveals nothing); pay and
//     withdraw require authorization against the stored credential commitment
//
// Usage:
//   - Build proofs client-side with the transactions packages, then submit the
//     resulting ProofEnvelope to Ledger.Pay / Ledger.Withdraw
//   - See cmd/vaultd for the REST daemon and cmd/vaultcli for the client
package vault
