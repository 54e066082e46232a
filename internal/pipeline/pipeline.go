// Package pipeline runs one clip through the full analysis sequence:
// validate, dedup check, download, sample, transcribe, infer, parse,
// persist. Every run gets its own scratch directory that is removed on
// all exit paths.
package pipeline

import (
	"context"
	"os"

	"github.com/google/uuid"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/internal/validate"
	"github.com/patchlib/clipsight/pkg/log"
)

type Validator interface {
	Validate(ctx context.Context, rawURL string) (validate.Result, error)
}

type Downloader interface {
	Fetch(ctx context.Context, rawURL string, class validate.Classification, destDir string) (*analysis.DownloadedMedia, error)
}

type Sampler interface {
	Sample(ctx context.Context, videoPath, workDir string) (analysis.FrameSet, float64, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, videoPath string) analysis.Transcript
}

type VisionAPI interface {
	AnalyzeFrames(ctx context.Context, prompt string, frames analysis.FrameSet) (string, error)
}

type RecordStore interface {
	GetBySourceURL(ctx context.Context, sourceURL string) (*analysis.AnalysisRecord, error)
	Put(ctx context.Context, record *analysis.AnalysisRecord) error
}

type Pipeline struct {
	validator   Validator
	downloader  Downloader
	sampler     Sampler
	transcriber Transcriber
	vision      VisionAPI
	store       RecordStore
	workDir     string
}

func New(validator Validator, downloader Downloader, sampler Sampler, transcriber Transcriber, vision VisionAPI, store RecordStore, workDir string) *Pipeline {
	return &Pipeline{
		validator:   validator,
		downloader:  downloader,
		sampler:     sampler,
		transcriber: transcriber,
		vision:      vision,
		store:       store,
		workDir:     workDir,
	}
}

// Analyze runs a single clip end to end. A clip whose source URL was
// already analyzed short-circuits to the stored record before anything
// is downloaded.
func (p *Pipeline) Analyze(ctx context.Context, ref analysis.ClipReference) (*analysis.AnalysisRecord, error) {
	if err := cancelled(ctx, analysis.StageValidating); err != nil {
		return nil, err
	}

	result, err := p.validator.Validate(ctx, ref.SourceURL)
	if err != nil {
		return nil, analysis.AsFailure(err, analysis.StageValidating)
	}

	if existing, err := p.store.GetBySourceURL(ctx, ref.SourceURL); err != nil {
		return nil, analysis.WrapFailure(analysis.FailNetwork, analysis.StagePersisting,
			"dedup lookup failed", err)
	} else if existing != nil {
		log.Info("clip %s already analyzed, returning stored record", ref.SourceURL)
		return existing, nil
	}

	workDir, err := os.MkdirTemp(p.workDir, "clip-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return nil, analysis.WrapFailure(analysis.FailNetwork, analysis.StageDownloading,
			"cannot create scratch directory", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			log.Warn("scratch directory %s not removed: %v", workDir, rmErr)
		}
	}()

	media, err := p.downloader.Fetch(ctx, ref.SourceURL, result.Classification, workDir)
	if err != nil {
		return nil, analysis.AsFailure(err, analysis.StageDownloading)
	}

	if err := cancelled(ctx, analysis.StageSampling); err != nil {
		return nil, err
	}
	frames, duration, err := p.sampler.Sample(ctx, media.Path, workDir)
	if err != nil {
		return nil, analysis.AsFailure(err, analysis.StageSampling)
	}
	media.Duration = duration

	transcript := p.transcriber.Transcribe(ctx, media.Path)

	if err := cancelled(ctx, analysis.StageInferring); err != nil {
		return nil, err
	}
	prompt := analysis.ComposePrompt(ref, frames, transcript)
	raw, err := p.vision.AnalyzeFrames(ctx, prompt, frames)
	if err != nil {
		return nil, analysis.AsFailure(err, analysis.StageInferring)
	}

	record, fail := analysis.ParseModelOutput(raw, ref, len(frames), transcript)
	if fail != nil {
		return nil, fail
	}

	if err := p.store.Put(ctx, record); err != nil {
		return nil, analysis.AsFailure(analysis.WrapFailure(analysis.FailNetwork,
			analysis.StagePersisting, "cannot persist analysis record", err), analysis.StagePersisting)
	}

	log.Info("analyzed %s: %q (%d frames, %.1fs, transcript %d chars)",
		ref.SourceURL, record.Title, record.FramesAnalyzed, duration, record.TranscriptLength)
	return record, nil
}

// cancelled reports a context that expired between stages as a
// cancellation failure attributed to the stage about to start.
func cancelled(ctx context.Context, stage analysis.Stage) error {
	if err := ctx.Err(); err != nil {
		return analysis.WrapFailure(analysis.FailCancelled, stage, "analysis cancelled", err)
	}
	return nil
}

// Describe wraps a pipeline failure with the clip identity for batch
// error reporting.
func Describe(ref analysis.ClipReference, err error) analysis.FailureDescriptor {
	return analysis.AsFailure(err, analysis.StageValidating).Describe(ref)
}
