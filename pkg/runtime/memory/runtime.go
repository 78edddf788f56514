package memory

import (
	"context"
	"crypto/ed25519"
	"sort"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"github.com/spacenexus/spacetoken-server/pkg/runtime"
)

type invocationContextKey struct{}

type invocation struct {
	rt *rt

	// Pre-invocation state of every account touched. A nil entry means the
	// account didn't exist.
	journal map[string]*runtime.Account
}

type rt struct {
	mu       sync.Mutex
	accounts map[string]*runtime.Account
}

// New returns an in-process runtime. Invocations are serialised by a single
// lock and rolled back from a journal on failure.
func New() runtime.Runtime {
	return &rt{
		accounts: make(map[string]*runtime.Account),
	}
}

func (r *rt) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if existing := r.getInvocation(ctx); existing != nil {
		return fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	inv := &invocation{
		rt:      r,
		journal: make(map[string]*runtime.Account),
	}

	err := fn(context.WithValue(ctx, invocationContextKey{}, inv))
	if err != nil {
		inv.rollback()
		return err
	}
	return nil
}

func (r *rt) CreateAccount(ctx context.Context, args *runtime.CreateAccountArgs) (*runtime.Account, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	if err := runtime.RequireSigner(ctx, args.Payer); err != nil {
		return nil, err
	}

	var created *runtime.Account
	err := r.Execute(ctx, func(ctx context.Context) error {
		inv := r.getInvocation(ctx)

		key := base58.Encode(args.Address)
		if _, ok := r.accounts[key]; ok {
			return runtime.ErrAccountAlreadyInUse
		}

		now := time.Now()
		account := &runtime.Account{
			Address:   args.Address,
			Owner:     args.Owner,
			Payer:     args.Payer,
			Space:     args.Space,
			Lamports:  runtime.MinimumBalanceForRentExemption(args.Space),
			Data:      make([]byte, args.Space),
			CreatedAt: now,
			UpdatedAt: now,
		}

		inv.record(key)
		r.accounts[key] = account.Clone()
		created = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *rt) GetAccount(ctx context.Context, address ed25519.PublicKey) (*runtime.Account, error) {
	var found *runtime.Account
	err := r.Execute(ctx, func(ctx context.Context) error {
		account, ok := r.accounts[base58.Encode(address)]
		if !ok {
			return runtime.ErrAccountNotFound
		}
		found = account.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *rt) PutAccountData(ctx context.Context, program, address ed25519.PublicKey, data []byte) error {
	return r.Execute(ctx, func(ctx context.Context) error {
		inv := r.getInvocation(ctx)

		key := base58.Encode(address)
		account, ok := r.accounts[key]
		if !ok {
			return runtime.ErrAccountNotFound
		}

		if err := runtime.CheckAccountData(account, program, data); err != nil {
			return err
		}

		inv.record(key)

		updated := account.Clone()
		updated.Data = runtime.PadAccountData(data, account.Space)
		updated.UpdatedAt = time.Now()
		r.accounts[key] = updated
		return nil
	})
}

func (r *rt) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey) ([]*runtime.Account, error) {
	var res []*runtime.Account
	err := r.Execute(ctx, func(ctx context.Context) error {
		for _, account := range r.accounts {
			if account.IsOwnedBy(program) {
				res = append(res, account.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(res, func(i, j int) bool {
		return base58.Encode(res[i].Address) < base58.Encode(res[j].Address)
	})
	return res, nil
}

func (r *rt) getInvocation(ctx context.Context) *invocation {
	inv, ok := ctx.Value(invocationContextKey{}).(*invocation)
	if !ok || inv.rt != r {
		return nil
	}
	return inv
}

func (r *rt) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts = make(map[string]*runtime.Account)
}

func (inv *invocation) record(key string) {
	if _, ok := inv.journal[key]; ok {
		return
	}

	existing, ok := inv.rt.accounts[key]
	if !ok {
		inv.journal[key] = nil
		return
	}
	inv.journal[key] = existing.Clone()
}

func (inv *invocation) rollback() {
	for key, original := range inv.journal {
		if original == nil {
			delete(inv.rt.accounts, key)
			continue
		}
		inv.rt.accounts[key] = original
	}
}
