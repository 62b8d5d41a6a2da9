package service

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
	"github.com/akash768145s/BlockCred-sub000/internal/registry"
)

// OperationObserver receives the outcome of every mutating ledger call.
type OperationObserver interface {
	ObserveOperation(method, outcome string, elapsed time.Duration)
}

// Outcome classifies err for metrics labels.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var regErr *registry.Error
	if errors.As(err, &regErr) {
		return regErr.Kind.String()
	}
	return "error"
}

// InstrumentedLedger reports mutating calls of the wrapped Ledger to an
// OperationObserver. Reads pass through untouched.
type InstrumentedLedger struct {
	Ledger
	observer OperationObserver
}

// Instrument wraps ledger. A nil observer returns ledger unchanged.
func Instrument(ledger Ledger, observer OperationObserver) Ledger {
	if observer == nil {
		return ledger
	}
	return &InstrumentedLedger{Ledger: ledger, observer: observer}
}

func (l *InstrumentedLedger) observe(method string, start time.Time, err error) {
	l.observer.ObserveOperation(method, Outcome(err), time.Since(start))
}

func (l *InstrumentedLedger) RegisterIssuer(ctx context.Context, caller common.Address, reg domain.IssuerRegistration) (domain.Receipt, error) {
	start := time.Now()
	receipt, err := l.Ledger.RegisterIssuer(ctx, caller, reg)
	l.observe(registry.MethodRegisterIssuer, start, err)
	return receipt, err
}

func (l *InstrumentedLedger) DeactivateIssuer(ctx context.Context, caller, issuer common.Address) (domain.Receipt, error) {
	start := time.Now()
	receipt, err := l.Ledger.DeactivateIssuer(ctx, caller, issuer)
	l.observe(registry.MethodDeactivateIssuer, start, err)
	return receipt, err
}

func (l *InstrumentedLedger) RegisterStudentWallet(ctx context.Context, caller common.Address, studentID string, wallet common.Address) (domain.Receipt, error) {
	start := time.Now()
	receipt, err := l.Ledger.RegisterStudentWallet(ctx, caller, studentID, wallet)
	l.observe(registry.MethodRegisterStudentWallet, start, err)
	return receipt, err
}

func (l *InstrumentedLedger) IssueCertificate(ctx context.Context, caller common.Address, req domain.IssueRequest) (domain.Receipt, error) {
	start := time.Now()
	receipt, err := l.Ledger.IssueCertificate(ctx, caller, req)
	l.observe(registry.MethodIssueCertificate, start, err)
	return receipt, err
}

func (l *InstrumentedLedger) RevokeCertificate(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error) {
	start := time.Now()
	receipt, err := l.Ledger.RevokeCertificate(ctx, caller, certID)
	l.observe(registry.MethodRevokeCertificate, start, err)
	return receipt, err
}

func (l *InstrumentedLedger) RecordVerification(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error) {
	start := time.Now()
	receipt, err := l.Ledger.RecordVerification(ctx, caller, certID)
	l.observe(registry.MethodRecordVerification, start, err)
	return receipt, err
}

// ReceiptRecorder is handed the receipt of every successful mutating call.
type ReceiptRecorder interface {
	RecordReceipt(receipt domain.Receipt)
}

// RecordingLedger forwards receipts of the wrapped Ledger to a
// ReceiptRecorder.
type RecordingLedger struct {
	Ledger
	recorder ReceiptRecorder
}

// Record wraps ledger. A nil recorder returns ledger unchanged.
func Record(ledger Ledger, recorder ReceiptRecorder) Ledger {
	if recorder == nil {
		return ledger
	}
	return &RecordingLedger{Ledger: ledger, recorder: recorder}
}

func (l *RecordingLedger) record(receipt domain.Receipt, err error) (domain.Receipt, error) {
	if err == nil {
		l.recorder.RecordReceipt(receipt)
	}
	return receipt, err
}

func (l *RecordingLedger) RegisterIssuer(ctx context.Context, caller common.Address, reg domain.IssuerRegistration) (domain.Receipt, error) {
	return l.record(l.Ledger.RegisterIssuer(ctx, caller, reg))
}

func (l *RecordingLedger) DeactivateIssuer(ctx context.Context, caller, issuer common.Address) (domain.Receipt, error) {
	return l.record(l.Ledger.DeactivateIssuer(ctx, caller, issuer))
}

func (l *RecordingLedger) RegisterStudentWallet(ctx context.Context, caller common.Address, studentID string, wallet common.Address) (domain.Receipt, error) {
	return l.record(l.Ledger.RegisterStudentWallet(ctx, caller, studentID, wallet))
}

func (l *RecordingLedger) IssueCertificate(ctx context.Context, caller common.Address, req domain.IssueRequest) (domain.Receipt, error) {
	return l.record(l.Ledger.IssueCertificate(ctx, caller, req))
}

func (l *RecordingLedger) RevokeCertificate(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error) {
	return l.record(l.Ledger.RevokeCertificate(ctx, caller, certID))
}

func (l *RecordingLedger) RecordVerification(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error) {
	return l.record(l.Ledger.RecordVerification(ctx, caller, certID))
}
