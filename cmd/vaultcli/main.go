// main.go - Vault client: builds proofs locally and submits them to vaultd.
//
// The password never leaves this process; only commitments and the proof
// envelope go over the wire. Proving happens here precisely so the daemon
// never blocks on it.
//
// Usage:
//
//	vaultcli -op register -user alice
//	vaultcli -op deposit  -user alice -amount 100000000
//	vaultcli -op pay      -user alice -to <bob-username-or-hash> -amount 50000000
//	vaultcli -op withdraw -user alice -dest 0xabc... -amount 25000000
//	vaultcli -op balance  -user alice
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"

	"golang.org/x/term"

	"zkvault/internal/transactions/register"
	"zkvault/internal/transactions/spend"
	"zkvault/internal/vault"
)

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "vaultd base URL")
		op        = flag.String("op", "", "operation: register, deposit, pay, withdraw, balance")
		user      = flag.String("user", "", "username")
		to        = flag.String("to", "", "recipient username (pay)")
		dest      = flag.String("dest", "", "external destination (withdraw)")
		amountStr = flag.String("amount", "", "amount in base units")
		pkPath    = flag.String("pk", "proving.key", "path to proving key")
		vkPath    = flag.String("vk", "verifying.key", "path to verifying key")
	)
	flag.Parse()

	if *op == "" || *user == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*serverURL, *op, *user, *to, *dest, *amountStr, *pkPath, *vkPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(serverURL, op, user, to, dest, amountStr, pkPath, vkPath string) error {
	switch op {
	case "register":
		password, err := promptPassword()
		if err != nil {
			return err
		}
		prover, err := vault.NewBackendWithKeys(pkPath, vkPath)
		if err != nil {
			return err
		}
		nonce, err := vault.RandomNonce()
		if err != nil {
			return err
		}
		res, err := register.Build(prover, user, password, nonce)
		if err != nil {
			return err
		}
		return post(serverURL+"/register", map[string]interface{}{
			"username_hash":   res.UsernameHash,
			"credential_hash": res.CredentialHash,
			"nonce":           res.Nonce,
			"result_hash":     res.ResultHash,
			"envelope":        res.Envelope,
		})

	case "deposit":
		hash, err := identityHash(user)
		if err != nil {
			return err
		}
		if amountStr == "" {
			return fmt.Errorf("-amount is required")
		}
		return post(serverURL+"/deposit", map[string]interface{}{
			"username_hash": hash,
			"amount":        amountStr,
		})

	case "pay", "withdraw":
		if amountStr == "" {
			return fmt.Errorf("-amount is required")
		}
		amount, ok := new(big.Int).SetString(amountStr, 10)
		if !ok {
			return fmt.Errorf("invalid amount %q", amountStr)
		}
		password, err := promptPassword()
		if err != nil {
			return err
		}
		prover, err := vault.NewBackendWithKeys(pkPath, vkPath)
		if err != nil {
			return err
		}
		nonce, err := vault.RandomNonce()
		if err != nil {
			return err
		}

		if op == "pay" {
			if to == "" {
				return fmt.Errorf("-to is required for pay")
			}
			toHash, err := identityHash(to)
			if err != nil {
				return err
			}
			res, err := spend.Build(prover, user, password, nonce, toHash, amount)
			if err != nil {
				return err
			}
			return post(serverURL+"/pay", map[string]interface{}{
				"from":     res.UsernameHash,
				"to":       res.To,
				"amount":   res.Amount.String(),
				"nonce":    res.Nonce,
				"envelope": res.Envelope,
			})
		}

		if dest == "" {
			return fmt.Errorf("-dest is required for withdraw")
		}
		res, err := spend.Build(prover, user, password, nonce, dest, amount)
		if err != nil {
			return err
		}
		return post(serverURL+"/withdraw", map[string]interface{}{
			"from":        res.UsernameHash,
			"destination": res.To,
			"amount":      res.Amount.String(),
			"nonce":       res.Nonce,
			"envelope":    res.Envelope,
		})

	case "balance":
		hash, err := identityHash(user)
		if err != nil {
			return err
		}
		resp, err := http.Get(serverURL + "/balance/" + hash)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return printResponse(resp)

	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

// identityHash accepts either a username or an already computed identity
// hash (any string that parses as a decimal field element).
func identityHash(userOrHash string) (string, error) {
	if _, ok := new(big.Int).SetString(userOrHash, 10); ok {
		return userOrHash, nil
	}
	h, err := vault.UsernameHash(userOrHash)
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(pw) == 0 {
		return "", fmt.Errorf("empty password")
	}
	return string(pw), nil
}

func post(url string, body map[string]interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(string(bytes.TrimSpace(body)))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
