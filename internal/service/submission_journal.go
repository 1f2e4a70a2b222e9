package service

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"roundkeeper/internal/ledger"
	"roundkeeper/internal/models"
	"roundkeeper/internal/repository"
)

// SubmissionJournal stores ledger.Submitter outcomes as TxSubmission rows.
type SubmissionJournal struct {
	Repo repository.Repository
}

func (j *SubmissionJournal) RecordSubmission(ctx context.Context, rec ledger.SubmissionRecord) error {
	if j == nil || j.Repo == nil {
		return nil
	}
	args, err := json.Marshal(rec.Arguments)
	if err != nil {
		return err
	}
	item := &models.TxSubmission{
		Function:   rec.Function,
		Arguments:  datatypes.JSON(args),
		Sender:     strings.ToLower(rec.Sender),
		Attempts:   rec.Attempts,
		Status:     rec.Status,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
	if rec.Hash != "" {
		item.TxHash = &rec.Hash
	}
	if rec.Error != "" {
		item.Error = &rec.Error
	}
	return j.Repo.InsertTxSubmission(ctx, item)
}
