package cashout

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atlaspay-io/atlaspay-backend/pkg/db/models"
	"github.com/atlaspay-io/atlaspay-backend/pkg/enums"
	pkgerrors "github.com/atlaspay-io/atlaspay-backend/pkg/errors"
	"github.com/atlaspay-io/atlaspay-backend/pkg/fiatrail"
)

type fakeRail struct {
	deposit *fiatrail.Deposit
	err     error
	calls   int
}

func (f *fakeRail) CreateDeposit(ctx context.Context, params fiatrail.DepositParams) (*fiatrail.Deposit, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.deposit, nil
}

type fakeRepository struct {
	created []*models.FiatSettlement
	err     error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, settlement *models.FiatSettlement) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, settlement)
	return nil
}

func (f *fakeRepository) ListByInvoiceID(ctx context.Context, invoiceID uuid.UUID) ([]models.FiatSettlement, error) {
	return nil, nil
}

func validInput() ExecuteInput {
	return ExecuteInput{
		InvoiceID:      uuid.New(),
		AmountUSDCents: 10000,
		BankAccountID:  "ba_1",
		Reference:      "inv-42",
	}
}

func TestExecuteRecordsCompletedTransfer(t *testing.T) {
	rail := &fakeRail{deposit: &fiatrail.Deposit{TransferID: "tr_123", Status: "completed"}}
	repo := &fakeRepository{}
	svc, err := NewService(rail, repo, false, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	record, err := svc.Execute(context.Background(), nil, validInput())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if record.Status != enums.FiatSettlementStatusCompleted {
		t.Fatalf("unexpected status %s", record.Status)
	}
	if record.ExternalTransferID != "tr_123" {
		t.Fatalf("unexpected transfer id %q", record.ExternalTransferID)
	}
	if record.ErrorNote != nil {
		t.Fatalf("unexpected error note %q", *record.ErrorNote)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(repo.created))
	}
}

func TestExecuteFailsLoudlyByDefault(t *testing.T) {
	rail := &fakeRail{err: pkgerrors.New(pkgerrors.CodeRailFailure, "fiat rail returned 502")}
	repo := &fakeRepository{}
	svc, err := NewService(rail, repo, false, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Execute(context.Background(), nil, validInput())
	if err == nil {
		t.Fatal("expected error with simulation disabled")
	}
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeRailFailure {
		t.Fatalf("expected RAIL_FAILURE, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("nothing should be persisted on rail failure")
	}
}

func TestExecuteSimulatesWhenPolicyEnabled(t *testing.T) {
	rail := &fakeRail{err: pkgerrors.New(pkgerrors.CodeRailFailure, "fiat rail unreachable")}
	repo := &fakeRepository{}
	svc, err := NewService(rail, repo, true, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	record, err := svc.Execute(context.Background(), nil, validInput())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if record.Status != enums.FiatSettlementStatusCompletedSimulated {
		t.Fatalf("unexpected status %s", record.Status)
	}
	if !strings.HasPrefix(record.ExternalTransferID, "sim_") {
		t.Fatalf("unexpected transfer id %q", record.ExternalTransferID)
	}
	if record.ErrorNote == nil || !strings.Contains(*record.ErrorNote, "unreachable") {
		t.Fatalf("expected rail error preserved in note, got %+v", record.ErrorNote)
	}
}

func TestExecuteSimulatesRailRejectionsToo(t *testing.T) {
	// The enabled policy absorbs every rail failure, not just outages:
	// 4xx rejections and credential problems end as simulated payouts.
	railErrs := []error{
		pkgerrors.New(pkgerrors.CodeStateConflict, "account frozen"),
		pkgerrors.New(pkgerrors.CodeValidation, "fiat rail rejected request (400)"),
		pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key"),
	}
	for _, railErr := range railErrs {
		rail := &fakeRail{err: railErr}
		repo := &fakeRepository{}
		svc, err := NewService(rail, repo, true, nil)
		if err != nil {
			t.Fatalf("NewService: %v", err)
		}

		record, err := svc.Execute(context.Background(), nil, validInput())
		if err != nil {
			t.Fatalf("%v: Execute: %v", railErr, err)
		}
		if record.Status != enums.FiatSettlementStatusCompletedSimulated {
			t.Fatalf("%v: unexpected status %s", railErr, record.Status)
		}
		if record.ErrorNote == nil || *record.ErrorNote != railErr.Error() {
			t.Fatalf("%v: expected rail error preserved in note, got %+v", railErr, record.ErrorNote)
		}
		if len(repo.created) != 1 {
			t.Fatalf("%v: expected 1 persisted settlement, got %d", railErr, len(repo.created))
		}
	}
}

func TestExecuteValidation(t *testing.T) {
	rail := &fakeRail{deposit: &fiatrail.Deposit{TransferID: "tr_1"}}
	svc, err := NewService(rail, &fakeRepository{}, false, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	cases := []ExecuteInput{
		{AmountUSDCents: 100, BankAccountID: "ba_1"},
		{InvoiceID: uuid.New(), BankAccountID: "ba_1"},
		{InvoiceID: uuid.New(), AmountUSDCents: 100},
	}
	for i, input := range cases {
		if _, err := svc.Execute(context.Background(), nil, input); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if rail.calls != 0 {
		t.Fatalf("rail should not be called on invalid input, got %d calls", rail.calls)
	}
}
