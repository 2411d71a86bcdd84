package wallet

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/venturemart/wallet/internal/apperrors"
	"github.com/venturemart/wallet/internal/models"
	"github.com/venturemart/wallet/internal/repository"
	"github.com/venturemart/wallet/internal/repository/postgres"
	"github.com/venturemart/wallet/internal/testutil"
)

func TestLedger(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Helper function to create LedgerService within transaction
	inTx := func(t *testing.T, fn func(s *LedgerService, storage repository.Storage, user models.User)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			user, err := storage.User().CreateUser(t.Context(), "test-user", "hash")
			require.NoError(t, err)
			fn(NewService(storage), storage, user)
		})
	}

	t.Run("AddCredits", func(t *testing.T) {
		t.Run("rejects non positive amount", func(t *testing.T) {
			inTx(t, func(s *LedgerService, _ repository.Storage, user models.User) {
				_, err := s.AddCredits(t.Context(), user.ID, decimal.Zero, "nothing", "", "")
				require.ErrorIs(t, err, apperrors.ErrAmountNotPositive)

				_, err = s.AddCredits(t.Context(), user.ID, decimal.NewFromInt(-5), "nothing", "", "")
				require.ErrorIs(t, err, apperrors.ErrAmountNotPositive)

				_, err = s.GetWallet(t.Context(), user.ID)
				require.ErrorIs(t, err, apperrors.ErrWalletNotFound, "rejected call must not create a wallet")
			})
		})

		t.Run("creates wallet lazily and counts earned", func(t *testing.T) {
			inTx(t, func(s *LedgerService, _ repository.Storage, user models.User) {
				wallet, err := s.AddCredits(t.Context(), user.ID, decimal.NewFromInt(50), "referral", models.ReferenceTypeReferralBonus, uuid.NewString())

				require.NoError(t, err)
				require.True(t, wallet.Balance.Equal(decimal.NewFromInt(50)), "balance should be 50")
				require.True(t, wallet.TotalEarned.Equal(decimal.NewFromInt(50)), "referral bonus should count as earned")
				require.True(t, wallet.TotalSpent.IsZero())

				transactions, err := s.ListTransactions(t.Context(), user.ID, nil)
				require.NoError(t, err)
				require.Len(t, transactions, 1)
				require.Equal(t, models.TransactionTypeReferralBonus, transactions[0].Type)
				require.True(t, transactions[0].BalanceBefore.IsZero())
				require.True(t, transactions[0].BalanceAfter.Equal(decimal.NewFromInt(50)))
			})
		})

		t.Run("deposit excluded from earned", func(t *testing.T) {
			inTx(t, func(s *LedgerService, _ repository.Storage, user models.User) {
				wallet, err := s.AddCredits(t.Context(), user.ID, decimal.NewFromInt(100), "deposit", models.ReferenceTypeDeposit, "gateway-txn-1")

				require.NoError(t, err)
				require.True(t, wallet.Balance.Equal(decimal.NewFromInt(100)), "balance should be 100")
				require.True(t, wallet.TotalEarned.IsZero(), "deposit must not count as earned")

				transactions, err := s.ListTransactions(t.Context(), user.ID, nil)
				require.NoError(t, err)
				require.Len(t, transactions, 1)
				require.Equal(t, models.TransactionTypeDeposit, transactions[0].Type)
			})
		})

		t.Run("unknown reference type recorded as earn", func(t *testing.T) {
			inTx(t, func(s *LedgerService, _ repository.Storage, user models.User) {
				_, err := s.AddCredits(t.Context(), user.ID, decimal.NewFromInt(5), "manual correction", "support_adjustment", uuid.NewString())
				require.NoError(t, err)

				transactions, err := s.ListTransactions(t.Context(), user.ID, []string{models.TransactionTypeEarn})
				require.NoError(t, err)
				require.Len(t, transactions, 1)
				require.Equal(t, "support_adjustment", transactions[0].ReferenceType)
			})
		})

		t.Run("duplicate reference leaves balance unchanged", func(t *testing.T) {
			inTx(t, func(s *LedgerService, _ repository.Storage, user models.User) {
				_, err := s.AddCredits(t.Context(), user.ID, decimal.NewFromInt(100), "deposit", models.ReferenceTypeDeposit, "gateway-txn-1")
				require.NoError(t, err)

				_, err = s.AddCredits(t.Context(), user.ID, decimal.NewFromInt(100), "deposit retry", models.ReferenceTypeDeposit, "gateway-txn-1")

				require.ErrorIs(t, err, apperrors.ErrDuplicateReference, "retried deposit must be rejected")

				wallet, err := s.GetWallet(t.Context(), user.ID)
				require.NoError(t, err)
				require.True(t, wallet.Balance.Equal(decimal.NewFromInt(100)), "balance should stay at 100")

				transactions, err := s.ListTransactions(t.Context(), user.ID, nil)
				require.NoError(t, err)
				require.Len(t, transactions, 1, "no second row should be written")
			})
		})

		t.Run("unknown user", func(t *testing.T) {
			inTx(t, func(s *LedgerService, _ repository.Storage, _ models.User) {
				_, err := s.AddCredits(t.Context(), uuid.New(), decimal.NewFromInt(10), "earn", "", "")
				require.ErrorIs(t, err, apperrors.ErrUserNotFound)
			})
		})
	})

	t.Run("DeductCredits", func(t *testing.T) {
		t.Run("rejects non positive amount", func(t *testing.T) {
			inTx(t, func(s *LedgerService, _ repository.Storage, user models.User) {
				_, err := s.DeductCredits(t.Context(), user.ID, decimal.Zero, "fee", "", "")
				require.ErrorIs(t, err, apperrors.ErrAmountNotPositive)
			})
		})

		t.Run("deduct then insufficient", func(t *testing.T) {
			inTx(t, func(s *LedgerService, _ repository.Storage, user models.User) {
				_, err := s.AddCredits(t.Context(), user.ID, decimal.NewFromInt(100), "deposit", models.ReferenceTypeDeposit, "gateway-txn-1")
				require.NoError(t, err)

				wallet, err := s.DeductCredits(t.Context(), user.ID, decimal.NewFromInt(50), "fee", "project_create", "project-1")
				require.NoError(t, err)
				require.True(t, wallet.Balance.Equal(decimal.NewFromInt(50)), "balance should be 50 after fee")
				require.True(t, wallet.TotalSpent.Equal(decimal.NewFromInt(50)))

				_, err = s.DeductCredits(t.Context(), user.ID, decimal.NewFromInt(80), "fee", "project_create", "project-2")
				require.ErrorIs(t, err, apperrors.ErrInsufficientCredits)

				wallet, err = s.GetWallet(t.Context(), user.ID)
				require.NoError(t, err)
				require.True(t, wallet.Balance.Equal(decimal.NewFromInt(50)), "failed deduction must not change balance")
				require.True(t, wallet.TotalSpent.Equal(decimal.NewFromInt(50)), "failed deduction must not change total spent")

				transactions, err := s.ListTransactions(t.Context(), user.ID, []string{models.TransactionTypeSpend})
				require.NoError(t, err)
				require.Len(t, transactions, 1, "insufficient path must not write a transaction row")
				require.True(t, transactions[0].BalanceBefore.Equal(decimal.NewFromInt(100)))
				require.True(t, transactions[0].BalanceAfter.Equal(decimal.NewFromInt(50)))
			})
		})

		t.Run("insufficient on fresh wallet leaves no rows", func(t *testing.T) {
			inTx(t, func(s *LedgerService, _ repository.Storage, user models.User) {
				_, err := s.DeductCredits(t.Context(), user.ID, decimal.NewFromInt(10), "fee", "", "")
				require.ErrorIs(t, err, apperrors.ErrInsufficientCredits)

				// The whole unit rolls back, even the lazily created wallet
				_, err = s.GetWallet(t.Context(), user.ID)
				require.ErrorIs(t, err, apperrors.ErrWalletNotFound)
			})
		})

		t.Run("duplicate charge reference rejected", func(t *testing.T) {
			inTx(t, func(s *LedgerService, _ repository.Storage, user models.User) {
				_, err := s.AddCredits(t.Context(), user.ID, decimal.NewFromInt(100), "deposit", models.ReferenceTypeDeposit, "gateway-txn-1")
				require.NoError(t, err)

				_, err = s.DeductCredits(t.Context(), user.ID, decimal.NewFromInt(10), "fee", "job_post", "job-1")
				require.NoError(t, err)

				_, err = s.DeductCredits(t.Context(), user.ID, decimal.NewFromInt(10), "fee retry", "job_post", "job-1")

				require.ErrorIs(t, err, apperrors.ErrDuplicateReference)

				wallet, err := s.GetWallet(t.Context(), user.ID)
				require.NoError(t, err)
				require.True(t, wallet.Balance.Equal(decimal.NewFromInt(90)), "retried charge must not apply twice")
			})
		})
	})

	t.Run("balance conservation over mixed sequence", func(t *testing.T) {
		inTx(t, func(s *LedgerService, _ repository.Storage, user models.User) {
			_, err := s.AddCredits(t.Context(), user.ID, decimal.NewFromInt(100), "deposit", models.ReferenceTypeDeposit, "gateway-txn-1")
			require.NoError(t, err)
			_, err = s.AddCredits(t.Context(), user.ID, decimal.NewFromInt(30), "referral", models.ReferenceTypeReferralBonus, uuid.NewString())
			require.NoError(t, err)
			_, err = s.DeductCredits(t.Context(), user.ID, decimal.NewFromInt(25), "fee", "project_create", "project-1")
			require.NoError(t, err)
			_, err = s.DeductCredits(t.Context(), user.ID, decimal.NewFromInt(200), "fee", "", "")
			require.ErrorIs(t, err, apperrors.ErrInsufficientCredits, "oversized deduction should fail")
			_, err = s.AddCredits(t.Context(), user.ID, decimal.NewFromInt(5), "bonus", "", "")
			require.NoError(t, err)

			wallet, err := s.GetWallet(t.Context(), user.ID)
			require.NoError(t, err)

			// 100 + 30 - 25 + 5, the failed deduction contributes nothing
			require.True(t, wallet.Balance.Equal(decimal.NewFromInt(110)), "balance should be initial plus successful credits minus successful debits")
			require.True(t, wallet.TotalEarned.Equal(decimal.NewFromInt(35)), "earned should exclude the deposit")
			require.True(t, wallet.TotalSpent.Equal(decimal.NewFromInt(25)))

			// Every row must link its snapshots to its amount
			transactions, err := s.ListTransactions(t.Context(), user.ID, nil)
			require.NoError(t, err)
			require.Len(t, transactions, 4)
			for _, tr := range transactions {
				switch tr.Type {
				case models.TransactionTypeSpend:
					require.True(t, tr.BalanceAfter.Equal(tr.BalanceBefore.Sub(tr.Amount)), "spend row snapshots should differ by amount")
				default:
					require.True(t, tr.BalanceAfter.Equal(tr.BalanceBefore.Add(tr.Amount)), "credit row snapshots should differ by amount")
				}
				require.Equal(t, models.TransactionStatusCompleted, tr.Status)
			}
		})
	})

	t.Run("GetWallet never creates", func(t *testing.T) {
		inTx(t, func(s *LedgerService, _ repository.Storage, user models.User) {
			_, err := s.GetWallet(t.Context(), user.ID)
			require.ErrorIs(t, err, apperrors.ErrWalletNotFound)

			_, err = s.GetWallet(t.Context(), user.ID)
			require.ErrorIs(t, err, apperrors.ErrWalletNotFound, "reads must stay idempotent")
		})
	})
}

// Two debits race on the same wallet over the real pool: the row lock plus
// the conditional update must let exactly one of them through
func TestLedger_ConcurrentDeduct(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	storage := postgres.NewStorage(pg.Pool)
	service := NewService(storage)

	user, err := storage.User().CreateUser(t.Context(), "concurrent-user", "hash")
	require.NoError(t, err)

	_, err = service.AddCredits(t.Context(), user.ID, decimal.NewFromInt(100), "deposit", "deposit", "gateway-txn-concurrent")
	require.NoError(t, err)

	const workers = 2
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = service.DeductCredits(t.Context(), user.ID, decimal.NewFromInt(60), "fee", "", "")
		}()
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperrors.ErrInsufficientCredits):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	require.Equal(t, 1, succeeded, "exactly one deduction should win")
	require.Equal(t, 1, insufficient, "the loser should see insufficient credits")

	wallet, err := service.GetWallet(t.Context(), user.ID)
	require.NoError(t, err)
	require.True(t, wallet.Balance.Equal(decimal.NewFromInt(40)), "balance should reflect exactly one deduction")

	transactions, err := service.ListTransactions(t.Context(), user.ID, []string{models.TransactionTypeSpend})
	require.NoError(t, err)
	require.Len(t, transactions, 1, "only the winning deduction should be recorded")
}
