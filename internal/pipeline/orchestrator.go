package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nokoro/statement-tracker/constants"
	"github.com/nokoro/statement-tracker/internal/ai"
	"github.com/nokoro/statement-tracker/internal/extract"
	"github.com/nokoro/statement-tracker/internal/layout"
	"github.com/nokoro/statement-tracker/internal/pattern"
)

// FieldExtractor is the layout stage as the orchestrator sees it.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, path string) layout.FieldResult
}

// MatcherFactory returns the regex extractor for an issuer hint.
type MatcherFactory func(issuer string) pattern.Matcher

// Orchestrator drives a document through layout extraction, the regex
// fallback, and validation, and merges the stages into one record.
type Orchestrator struct {
	Layout    FieldExtractor
	Matcher   MatcherFactory
	Validator ai.Provider
	Logger    *slog.Logger
}

func NewOrchestrator(lx FieldExtractor, mf MatcherFactory, validator ai.Provider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if mf == nil {
		mf = func(issuer string) pattern.Matcher {
			return pattern.ForIssuer(issuer, logger)
		}
	}
	return &Orchestrator{Layout: lx, Matcher: mf, Validator: validator, Logger: logger}
}

// stageResult carries the candidate fields out of the extraction stages.
type stageResult struct {
	Fields     extract.FieldSet
	Confidence extract.ConfidenceMap
	BaseMethod string
	RawText    string
	Steps      extract.StepLog
}

// candidates runs the layout stage and, only when it found nothing, the regex
// stage over the layout's raw text.
func (o *Orchestrator) candidates(ctx context.Context, path, issuer string) stageResult {
	lr := o.Layout.ExtractFields(ctx, path)

	var res stageResult
	res.Steps.Merge(lr.Steps)
	res.RawText = lr.Text

	if lr.Fields.HasAny() {
		o.Logger.Debug("pipeline.layout.ok", "path", path)
		res.Fields = lr.Fields
		res.Confidence = lr.Confidence
		res.BaseMethod = constants.MethodLayoutBased
		return res
	}

	o.Logger.Debug("pipeline.regex.fallback", "path", path, "issuer", issuer)
	rr := o.Matcher(issuer).Extract(res.RawText)
	res.Steps.Merge(rr.Steps)
	res.Fields = rr.Fields
	res.Confidence = rr.Confidence
	res.BaseMethod = constants.MethodRegexBased
	return res
}

// Extract runs the full pipeline. It never returns an error: any stage
// failure, including a panic, degrades to a terminal failed record.
func (o *Orchestrator) Extract(ctx context.Context, path, issuer string) (rec extract.Record) {
	defer func() {
		if r := recover(); r != nil {
			o.Logger.Error("pipeline.panic", "path", path, "panic", r)
			rec = extract.FailedRecord(fmt.Sprintf("panic: %v", r))
		}
	}()

	stage := o.candidates(ctx, path, issuer)
	if stage.RawText == "" && !stage.Fields.HasAny() {
		o.Logger.Warn("pipeline.no_text", "path", path)
		return extract.FailedRecord("no text could be extracted from document")
	}

	vr := o.Validator.Validate(ctx, stage.RawText, stage.Fields, issuer)
	stage.Steps.Add("validate", "provider", vr.Method)

	// Validation is authoritative: its fields and scores replace the stage
	// candidates wholesale.
	return extract.Record{
		Fields:            vr.ValidatedFields,
		Confidence:        vr.ConfidenceScores,
		OverallConfidence: vr.ConfidenceScores.MeanNonZero(),
		Method:            stage.BaseMethod + constants.MethodAIValidatedSuffix,
		Steps:             stage.Steps,
		FieldRationale:    vr.Rationale,
		LLMRationale:      vr.Summary,
	}
}

// ExtractNoAI runs layout and the regex fallback without validation.
func (o *Orchestrator) ExtractNoAI(ctx context.Context, path, issuer string) (rec extract.Record) {
	defer func() {
		if r := recover(); r != nil {
			o.Logger.Error("pipeline.panic", "path", path, "panic", r)
			rec = extract.FailedRecord(fmt.Sprintf("panic: %v", r))
		}
	}()

	stage := o.candidates(ctx, path, issuer)
	if stage.RawText == "" && !stage.Fields.HasAny() {
		o.Logger.Warn("pipeline.no_text", "path", path)
		return extract.FailedRecord("no text could be extracted from document")
	}

	method := constants.MethodSmartLayout
	if stage.BaseMethod == constants.MethodRegexBased {
		method = constants.MethodRegexFallback
	}
	return extract.Record{
		Fields:            stage.Fields,
		Confidence:        stage.Confidence,
		OverallConfidence: stage.Confidence.MeanNonZero(),
		Method:            method,
		Steps:             stage.Steps,
	}
}
