package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
)

// TaskError accumulates the per-item failures of a bulk run.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *TaskError) Unwrap() []error {
	return e.Errors
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// IssueTask is one certificate of a bulk run together with its issuer.
type IssueTask struct {
	Issuer common.Address
	Input  IssueInput
}

// BulkIssuer issues many certificates with a bounded worker pool. The ledger
// serialises the calls; the pool overlaps hashing and ledger round trips.
type BulkIssuer struct {
	service *CertificateService
	workers int
}

// NewBulkIssuer creates a BulkIssuer with the provided concurrency.
func NewBulkIssuer(service *CertificateService, workers int) *BulkIssuer {
	if workers <= 0 {
		workers = 4
	}
	return &BulkIssuer{
		service: service,
		workers: workers,
	}
}

// RegisterIssuers registers every issuer as admin. Already registered issuers
// are reported like any other failure.
func (bi *BulkIssuer) RegisterIssuers(ctx context.Context, admin common.Address, regs []domain.IssuerRegistration) error {
	ledger := bi.service.Ledger()
	return bi.run(ctx, len(regs), func(idx int) error {
		if _, err := ledger.RegisterIssuer(ctx, admin, normalizeRegistration(regs[idx])); err != nil {
			return fmt.Errorf("issuer %s: %w", regs[idx].Address.Hex(), err)
		}
		return nil
	})
}

// Issue issues every task. The returned slice is index-aligned with tasks and
// holds nil for failed items.
func (bi *BulkIssuer) Issue(ctx context.Context, tasks []IssueTask) ([]*IssueResult, error) {
	results := make([]*IssueResult, len(tasks))
	err := bi.run(ctx, len(tasks), func(idx int) error {
		task := tasks[idx]
		res, err := bi.service.Issue(ctx, task.Issuer, task.Input)
		if err != nil {
			label := task.Input.CertID
			if label == "" {
				label = "student " + task.Input.StudentID
			}
			return fmt.Errorf("certificate %d (%s): %w", idx, label, err)
		}
		results[idx] = &res
		return nil
	})
	return results, err
}

func (bi *BulkIssuer) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				errCh <- err
			}
		}
	}

	for i := 0; i < bi.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}

	var taskErr TaskError
	for err := range errCh {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
