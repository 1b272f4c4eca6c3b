// ledger.go - The proof-gated balance ledger state machine.
//
// All shared state (identity records, balances, used authentication tags,
// pending withdrawals) lives behind one mutex; every transition is applied as
// a single atomic step with no partial visibility. Proof generation happens
// client-side and never holds this lock; the ledger only does cheap
// verification-and-apply.
//
// The ledger can be persisted as a single JSON snapshot file.

package vault

import (
	"encoding/json"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is the per-username ledger state: the identity commitment it is
// keyed by, the credential commitment established at registration, and the
// balance. Records are never deleted and the credential never changes.
type Record struct {
	UsernameHash   string   `json:"username_hash"`
	CredentialHash string   `json:"credential_hash"`
	Balance        *big.Int `json:"balance"`
}

// EventType identifies a ledger event.
type EventType string

const (
	EventRegistered         EventType = "registered"
	EventDeposited          EventType = "deposited"
	EventPaid               EventType = "paid"
	EventWithdrawn          EventType = "withdrawn"
	EventWithdrawalRejected EventType = "withdrawal_rejected"
)

// Event is an append-only record of a successful transition. Events carry
// identity hashes and amounts only; authorization failures are not recorded
// here, and never with their variant.
type Event struct {
	Type   EventType `json:"type"`
	From   string    `json:"from,omitempty"`
	To     string    `json:"to,omitempty"`
	Amount *big.Int  `json:"amount,omitempty"`
	Time   time.Time `json:"time"`
}

// WithdrawalStatus is the settlement state of a withdrawal.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalConfirmed WithdrawalStatus = "confirmed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
)

// Withdrawal tracks a debit awaiting external settlement. The proof that
// authorized it is burned the moment the debit is applied; recovery after a
// crash goes through WithdrawalStatus, never through resubmitting the proof.
type Withdrawal struct {
	ID          string           `json:"id"`
	From        string           `json:"from"`
	Destination string           `json:"destination"`
	Amount      *big.Int         `json:"amount"`
	Status      WithdrawalStatus `json:"status"`
	Created     time.Time        `json:"created"`
	Settled     time.Time        `json:"settled,omitempty"`
}

// Ledger is the serializing state machine guarding all balances and
// credential records. All access goes through its methods; there is no
// ambient global state.
type Ledger struct {
	mu          sync.Mutex
	verifier    Verifier
	records     map[string]*Record
	usedTags    map[string]map[string]struct{}
	withdrawals map[string]*Withdrawal
	events      []Event
}

// NewLedger creates an empty ledger that authorizes spends with the given
// verifier.
func NewLedger(verifier Verifier) *Ledger {
	return &Ledger{
		verifier:    verifier,
		records:     make(map[string]*Record),
		usedTags:    make(map[string]map[string]struct{}),
		withdrawals: make(map[string]*Withdrawal),
	}
}

// tagUsed reports whether the tag was already consumed for this identity.
// Tags are scoped per identity to bound set growth and keep two users'
// coarse timestamp nonces from colliding. l.mu must be held.
func (l *Ledger) tagUsed(usernameHash, tag string) bool {
	_, ok := l.usedTags[usernameHash][tag]
	return ok
}

// consumeTag inserts a tag into the used set. l.mu must be held; callers
// invoke it in the same critical section as the balance mutation.
func (l *Ledger) consumeTag(usernameHash, tag string) {
	set, ok := l.usedTags[usernameHash]
	if !ok {
		set = make(map[string]struct{})
		l.usedTags[usernameHash] = set
	}
	set[tag] = struct{}{}
}

func (l *Ledger) appendEvent(t EventType, from, to string, amount *big.Int) {
	var amt *big.Int
	if amount != nil {
		amt = new(big.Int).Set(amount)
	}
	l.events = append(l.events, Event{Type: t, From: from, To: to, Amount: amt, Time: time.Now()})
}

// Register creates the identity record for usernameHash with a zero balance.
// It requires a valid registration proof whose public signals match the
// declared values; retries of an existing registration are rejected, never
// silently accepted.
func (l *Ledger) Register(usernameHash, credentialHash, nonce, resultHash string, env *ProofEnvelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[usernameHash]; exists {
		return ErrAlreadyRegistered
	}
	tag, err := l.authorizeRegister(usernameHash, credentialHash, nonce, resultHash, env)
	if err != nil {
		return err
	}

	l.records[usernameHash] = &Record{
		UsernameHash:   usernameHash,
		CredentialHash: credentialHash,
		Balance:        new(big.Int),
	}
	l.consumeTag(usernameHash, tag)
	l.appendEvent(EventRegistered, usernameHash, "", nil)
	return nil
}

// Deposit credits amount to an existing record. Funding an account does not
// require proving knowledge of its secret, so no proof is taken.
func (l *Ledger) Deposit(usernameHash string, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	rec, exists := l.records[usernameHash]
	if !exists {
		return ErrUnregisteredAccount
	}
	rec.Balance.Add(rec.Balance, amount)
	l.appendEvent(EventDeposited, "", usernameHash, amount)
	return nil
}

// Pay debits fromHash and credits toHash atomically. Requires both
// identities registered, a successful authorization against fromHash's
// record, and sufficient funds. The authentication tag is consumed in the
// same step as the balance mutation.
func (l *Ledger) Pay(fromHash, toHash string, amount *big.Int, nonce string, env *ProofEnvelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	from, exists := l.records[fromHash]
	if !exists {
		return ErrUnregisteredAccount
	}
	to, exists := l.records[toHash]
	if !exists {
		return ErrUnregisteredAccount
	}
	tag, err := l.authorizeSpend(from, env, nonce)
	if err != nil {
		return err
	}
	if from.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}

	from.Balance.Sub(from.Balance, amount)
	to.Balance.Add(to.Balance, amount)
	l.consumeTag(fromHash, tag)
	l.appendEvent(EventPaid, fromHash, toHash, amount)
	return nil
}

// Withdraw debits fromHash toward an external destination and records a
// pending withdrawal. It returns a receipt id the caller correlates with the
// settlement layer; the transition is not durable until SettleWithdrawal is
// called with a terminal status.
func (l *Ledger) Withdraw(fromHash, destination string, amount *big.Int, nonce string, env *ProofEnvelope) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return "", ErrZeroAmount
	}
	from, exists := l.records[fromHash]
	if !exists {
		return "", ErrUnregisteredAccount
	}
	tag, err := l.authorizeSpend(from, env, nonce)
	if err != nil {
		return "", err
	}
	if from.Balance.Cmp(amount) < 0 {
		return "", ErrInsufficientFunds
	}

	from.Balance.Sub(from.Balance, amount)
	l.consumeTag(fromHash, tag)
	w := &Withdrawal{
		ID:          uuid.NewString(),
		From:        fromHash,
		Destination: destination,
		Amount:      new(big.Int).Set(amount),
		Status:      WithdrawalPending,
		Created:     time.Now(),
	}
	l.withdrawals[w.ID] = w
	return w.ID, nil
}

// SettleWithdrawal records the terminal settlement outcome for a pending
// withdrawal. A rejected settlement re-credits the amount as a compensating
// transition; the consumed tag stays burned. Settling an already terminal
// withdrawal is a no-op so crash recovery can replay confirmations safely.
func (l *Ledger) SettleWithdrawal(id string, confirmed bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.withdrawals[id]
	if !exists {
		return ErrUnknownWithdrawal
	}
	if w.Status != WithdrawalPending {
		return nil
	}
	w.Settled = time.Now()
	if confirmed {
		w.Status = WithdrawalConfirmed
		l.appendEvent(EventWithdrawn, w.From, w.Destination, w.Amount)
		return nil
	}
	w.Status = WithdrawalRejected
	if rec, ok := l.records[w.From]; ok {
		rec.Balance.Add(rec.Balance, w.Amount)
	}
	l.appendEvent(EventWithdrawalRejected, w.From, w.Destination, w.Amount)
	return nil
}

// WithdrawalStatusByID returns a copy of the withdrawal with the given
// receipt id. This is the recovery path after a crash between "proof
// verified" and "settlement confirmed".
func (l *Ledger) WithdrawalStatusByID(id string) (Withdrawal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.withdrawals[id]
	if !exists {
		return Withdrawal{}, ErrUnknownWithdrawal
	}
	out := *w
	out.Amount = new(big.Int).Set(w.Amount)
	return out, nil
}

// BalanceOf returns the balance for an identity hash.
func (l *Ledger) BalanceOf(usernameHash string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, exists := l.records[usernameHash]
	if !exists {
		return nil, ErrUnregisteredAccount
	}
	return new(big.Int).Set(rec.Balance), nil
}

// CredentialOf returns the stored credential commitment for an identity hash.
func (l *Ledger) CredentialOf(usernameHash string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, exists := l.records[usernameHash]
	if !exists {
		return "", ErrUnregisteredAccount
	}
	return rec.CredentialHash, nil
}

// IsRegistered reports whether an identity record exists.
func (l *Ledger) IsRegistered(usernameHash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, exists := l.records[usernameHash]
	return exists
}

// TotalBalance returns the sum of all balances. Payments conserve it;
// deposits and settled withdrawals are the only external flows.
func (l *Ledger) TotalBalance() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := new(big.Int)
	for _, rec := range l.records {
		total.Add(total, rec.Balance)
	}
	return total
}

// Events returns a copy of the event log.
func (l *Ledger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// ledgerSnapshot is the JSON persistence format.
type ledgerSnapshot struct {
	Records     map[string]*Record     `json:"records"`
	UsedTags    map[string][]string    `json:"used_tags"`
	Withdrawals map[string]*Withdrawal `json:"withdrawals"`
	Events      []Event                `json:"events"`
}

// SaveToFile writes the ledger state as a JSON snapshot, overwriting path.
func (l *Ledger) SaveToFile(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := ledgerSnapshot{
		Records:     l.records,
		UsedTags:    make(map[string][]string, len(l.usedTags)),
		Withdrawals: l.withdrawals,
		Events:      l.events,
	}
	for id, tags := range l.usedTags {
		list := make([]string, 0, len(tags))
		for tag := range tags {
			list = append(list, tag)
		}
		snap.UsedTags[id] = list
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(&snap)
}

// LoadLedgerFromFile restores a ledger from a JSON snapshot, wiring the given
// verifier for subsequent transitions.
func LoadLedgerFromFile(path string, verifier Verifier) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var snap ledgerSnapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, err
	}
	l := NewLedger(verifier)
	if snap.Records != nil {
		l.records = snap.Records
	}
	if snap.Withdrawals != nil {
		l.withdrawals = snap.Withdrawals
	}
	l.events = snap.Events
	for id, tags := range snap.UsedTags {
		for _, tag := range tags {
			l.consumeTag(id, tag)
		}
	}
	return l, nil
}
