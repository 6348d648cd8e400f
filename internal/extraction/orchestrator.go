package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docgrid/docgrid/constants"
	"github.com/docgrid/docgrid/internal/common"
	"github.com/docgrid/docgrid/internal/entity"
	"github.com/docgrid/docgrid/internal/llm"
	"github.com/docgrid/docgrid/internal/quota"
)

// RowStore is the slice of the row collaborator the orchestrator drives:
// scoped reads, the atomic claim, and the two terminal writes.
type RowStore interface {
	GetByID(ctx context.Context, tableID, rowID uuid.UUID) (*entity.Row, error)
	Claim(ctx context.Context, rowID uuid.UUID, now, staleBefore time.Time) (bool, error)
	MarkExtracted(ctx context.Context, rowID uuid.UUID, data map[string]any, rawResponse string, now time.Time) error
	MarkFailed(ctx context.Context, rowID uuid.UUID, message string, rawResponse *string, now time.Time) error
}

// ColumnSource reads a table's extraction schema.
type ColumnSource interface {
	ListColumns(ctx context.Context, tableID uuid.UUID) ([]entity.Column, error)
}

// QuotaGate is consulted before work starts and after a successful commit.
type QuotaGate interface {
	CanExtract(ctx context.Context, accountID uuid.UUID) (quota.Decision, error)
	RecordExtraction(ctx context.Context, accountID uuid.UUID) error
}

// DocumentSigner mints a fresh time-bounded retrieval URL per attempt.
type DocumentSigner interface {
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

// Result is what the caller gets back synchronously. Pipeline failures are
// folded into a "failed" status; they never surface as hard errors.
type Result struct {
	Status constants.RowStatus `json:"status"`
	Data   map[string]any      `json:"data,omitempty"`
	Error  *string             `json:"error,omitempty"`
}

// Orchestrator turns "a row with an uploaded file and a column schema" into
// "a row with normalized, typed field values": quota pre-check, atomic
// claim, prompt, provider call behind the retry policy, sanitize, normalize,
// commit.
type Orchestrator struct {
	rows     RowStore
	columns  ColumnSource
	gate     QuotaGate
	signer   DocumentSigner
	provider llm.Extractor
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrchestrator(
	rows RowStore,
	columns ColumnSource,
	gate QuotaGate,
	signer DocumentSigner,
	provider llm.Extractor,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		rows:     rows,
		columns:  columns,
		gate:     gate,
		signer:   signer,
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// ExtractRow runs the pipeline for one row. The returned error is non-nil
// only for infrastructure faults (row store unreachable, claim write
// failed); everything else comes back as a structured Result.
func (o *Orchestrator) ExtractRow(ctx context.Context, accountID, tableID, rowID uuid.UUID) (Result, error) {
	reqID := uuid.New().String()
	start := o.now()
	log := o.logger.With("req_id", reqID, "row_id", rowID, "table_id", tableID)

	row, err := o.rows.GetByID(ctx, tableID, rowID)
	if err != nil {
		if errors.Is(err, common.ErrRowNotFound) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("load row: %w", err)
	}

	// Idempotency short-circuits come before everything else, including the
	// quota gate: finished or in-flight work never re-checks quota.
	if row.Status == constants.RowStatusExtracted {
		log.Info("extract.short_circuit.extracted")
		return Result{Status: constants.RowStatusExtracted, Data: row.Data}, nil
	}
	if row.Status == constants.RowStatusExtracting && !row.StaleExtracting(o.now()) {
		log.Info("extract.short_circuit.in_progress")
		return Result{Status: constants.RowStatusExtracting, Error: row.Error}, nil
	}

	if row.FilePath == "" {
		return Result{}, common.ErrDocumentMissing
	}

	decision, err := o.gate.CanExtract(ctx, accountID)
	if err != nil {
		return Result{}, fmt.Errorf("quota check: %w", err)
	}
	if !decision.Allowed {
		log.Warn("extract.quota_denied", "reason", decision.Reason)
		return o.fail(ctx, log, rowID, decision.Reason, nil)
	}

	// The claim is the pipeline's single point of mutual exclusion: of any
	// number of concurrent callers, only the one whose conditional update
	// actually changed the row proceeds to provider work.
	now := o.now()
	claimed, err := o.rows.Claim(ctx, rowID, now, now.Add(-constants.StaleExtractingAfter))
	if err != nil {
		return Result{}, fmt.Errorf("claim row: %w", err)
	}
	if !claimed {
		log.Info("extract.claim_lost")
		return Result{Status: constants.RowStatusExtracting}, nil
	}

	columns, err := o.columns.ListColumns(ctx, tableID)
	if err != nil {
		return o.fail(ctx, log, rowID, fmt.Sprintf("load schema: %v", err), nil)
	}
	specs := toSpecs(columns)

	prompt, err := llm.BuildExtractionPrompt(specs)
	if err != nil {
		// EmptySchema: checked before any provider is invoked.
		return o.fail(ctx, log, rowID, "table has no columns to extract", nil)
	}

	docURL, err := o.signer.SignedURL(ctx, row.FilePath, constants.SignedURLTTL)
	if err != nil {
		return o.fail(ctx, log, rowID, fmt.Sprintf("generate document url: %v", err), nil)
	}

	log.Info("extract.provider.start", "provider", o.provider.Name(), "columns", len(specs))
	raw, err := o.provider.Extract(ctx, docURL, prompt, row.FileName)
	if err != nil {
		log.Error("extract.provider.error", "provider", o.provider.Name(), "error", err,
			"elapsed_ms", o.now().Sub(start).Milliseconds())
		return o.fail(ctx, log, rowID, fmt.Sprintf("extraction failed: %v", err), nil)
	}

	obj, err := llm.ExtractJSONObject(raw)
	if err != nil {
		log.Error("extract.sanitize.error", "error", err, "raw_bytes", len(raw))
		return o.fail(ctx, log, rowID, fmt.Sprintf("could not read model response: %v", err), &raw)
	}

	// Advisory only: the normalizer is total, so a schema mismatch is worth
	// a log line, never a failure.
	if encoded, merr := json.Marshal(obj); merr == nil {
		if verr := llm.ValidateAgainstSchema(llm.BuildColumnsJSONSchema(specs), encoded); verr != nil {
			log.Warn("extract.schema_mismatch", "error", verr)
		}
	}

	data := llm.NormalizeToSchema(obj, specs)

	if err := o.rows.MarkExtracted(ctx, rowID, data, llm.Truncate(raw, constants.MaxRawResponseLen), o.now()); err != nil {
		return Result{}, fmt.Errorf("commit row: %w", err)
	}
	if err := o.gate.RecordExtraction(ctx, accountID); err != nil {
		// Usage tracking must not undo a committed extraction.
		log.Error("extract.usage_record_failed", "error", err)
	}

	log.Info("extract.ok",
		"provider", o.provider.Name(),
		"fields", len(data),
		"elapsed_ms", o.now().Sub(start).Milliseconds(),
	)
	return Result{Status: constants.RowStatusExtracted, Data: data}, nil
}

// fail converts a pipeline failure into a failed row transition plus a
// structured result. A failing failure-write is an infrastructure fault and
// does propagate.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, rowID uuid.UUID, message string, raw *string) (Result, error) {
	if raw != nil {
		t := llm.Truncate(*raw, constants.MaxRawResponseLen)
		raw = &t
	}
	if err := o.rows.MarkFailed(ctx, rowID, message, raw, o.now()); err != nil {
		return Result{}, fmt.Errorf("mark row failed: %w", err)
	}
	log.Warn("extract.failed", "error", message)
	return Result{Status: constants.RowStatusFailed, Error: &message}, nil
}

func toSpecs(columns []entity.Column) []llm.ColumnSpec {
	specs := make([]llm.ColumnSpec, 0, len(columns))
	for _, c := range columns {
		specs = append(specs, llm.ColumnSpec{Key: c.Key, Description: c.Description})
	}
	return specs
}
