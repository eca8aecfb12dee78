package extract

import (
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/doc-salience/internal/core/domain"
)

// Options is the full tuning surface of the extraction engine. Zero values
// are filled from DefaultOptions; Validate rejects malformed values at
// construction instead of failing mid-run.
type Options struct {
	MinSegmentLength int
	MMRLambda        float64

	ExtractionRatio float64
	MinSegments     int
	MaxSegments     int

	MaxSegmentsToEmbed  int
	PreFilterSampleSize int
	FallbackBucketSize  int
	TopicAnchors        int

	HeadingBoost          float64
	DocumentTitleBoost    float64
	IdealMinLength        int
	IdealMaxLength        int
	MinLengthQualityScore float64

	// Hierarchical mode kicks in above HierarchicalThreshold segments and
	// embeds in fixed batches of HierarchicalBatchSize.
	HierarchicalThreshold int
	HierarchicalBatchSize int

	Pipeline PipelineOptions
}

// PipelineOptions are the streaming-mode budget knobs.
type PipelineOptions struct {
	GlobalEmbedBudget   int
	BootstrapChunks     int
	BootstrapRate       float64
	ChunkCap            int
	TrickleEveryChunks  int
	TrickleCount        int
	TailStartFraction   float64
	TailReserveFraction float64
	EmbedBatchSize      int
	DrainWait           time.Duration
	SampleSeed          uint64
}

func DefaultOptions() Options {
	return Options{
		MinSegmentLength: 15,
		MMRLambda:        0.6,

		ExtractionRatio: 0.12,
		MinSegments:     30,
		MaxSegments:     400,

		MaxSegmentsToEmbed:  2000,
		PreFilterSampleSize: 200,
		FallbackBucketSize:  25,
		TopicAnchors:        5,

		HeadingBoost:          1.15,
		DocumentTitleBoost:    1.8,
		IdealMinLength:        40,
		IdealMaxLength:        400,
		MinLengthQualityScore: 0.3,

		HierarchicalThreshold: 8000,
		HierarchicalBatchSize: 2000,

		Pipeline: PipelineOptions{
			GlobalEmbedBudget:   1500,
			BootstrapChunks:     5,
			BootstrapRate:       0.35,
			ChunkCap:            40,
			TrickleEveryChunks:  4,
			TrickleCount:        5,
			TailStartFraction:   0.7,
			TailReserveFraction: 0.15,
			EmbedBatchSize:      32,
			DrainWait:           30 * time.Second,
			SampleSeed:          0x9E3779B97F4A7C15,
		},
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	out := o
	if out.MinSegmentLength == 0 {
		out.MinSegmentLength = def.MinSegmentLength
	}
	if out.MMRLambda == 0 {
		out.MMRLambda = def.MMRLambda
	}
	if out.ExtractionRatio == 0 {
		out.ExtractionRatio = def.ExtractionRatio
	}
	if out.MinSegments == 0 {
		out.MinSegments = def.MinSegments
	}
	if out.MaxSegments == 0 {
		out.MaxSegments = def.MaxSegments
	}
	if out.MaxSegmentsToEmbed == 0 {
		out.MaxSegmentsToEmbed = def.MaxSegmentsToEmbed
	}
	if out.PreFilterSampleSize == 0 {
		out.PreFilterSampleSize = def.PreFilterSampleSize
	}
	if out.FallbackBucketSize == 0 {
		out.FallbackBucketSize = def.FallbackBucketSize
	}
	if out.TopicAnchors == 0 {
		out.TopicAnchors = def.TopicAnchors
	}
	if out.HeadingBoost == 0 {
		out.HeadingBoost = def.HeadingBoost
	}
	if out.DocumentTitleBoost == 0 {
		out.DocumentTitleBoost = def.DocumentTitleBoost
	}
	if out.IdealMinLength == 0 {
		out.IdealMinLength = def.IdealMinLength
	}
	if out.IdealMaxLength == 0 {
		out.IdealMaxLength = def.IdealMaxLength
	}
	if out.MinLengthQualityScore == 0 {
		out.MinLengthQualityScore = def.MinLengthQualityScore
	}
	if out.HierarchicalThreshold == 0 {
		out.HierarchicalThreshold = def.HierarchicalThreshold
	}
	if out.HierarchicalBatchSize == 0 {
		out.HierarchicalBatchSize = def.HierarchicalBatchSize
	}
	out.Pipeline = out.Pipeline.withDefaults(def.Pipeline)
	return out
}

func (p PipelineOptions) withDefaults(def PipelineOptions) PipelineOptions {
	out := p
	if out.GlobalEmbedBudget == 0 {
		out.GlobalEmbedBudget = def.GlobalEmbedBudget
	}
	if out.BootstrapChunks == 0 {
		out.BootstrapChunks = def.BootstrapChunks
	}
	if out.BootstrapRate == 0 {
		out.BootstrapRate = def.BootstrapRate
	}
	if out.ChunkCap == 0 {
		out.ChunkCap = def.ChunkCap
	}
	if out.TrickleEveryChunks == 0 {
		out.TrickleEveryChunks = def.TrickleEveryChunks
	}
	if out.TrickleCount == 0 {
		out.TrickleCount = def.TrickleCount
	}
	if out.TailStartFraction == 0 {
		out.TailStartFraction = def.TailStartFraction
	}
	if out.TailReserveFraction == 0 {
		out.TailReserveFraction = def.TailReserveFraction
	}
	if out.EmbedBatchSize == 0 {
		out.EmbedBatchSize = def.EmbedBatchSize
	}
	if out.DrainWait == 0 {
		out.DrainWait = def.DrainWait
	}
	if out.SampleSeed == 0 {
		out.SampleSeed = def.SampleSeed
	}
	return out
}

// Validate fails fast on malformed configuration.
func (o Options) Validate() error {
	var problems []error
	if o.MinSegmentLength < 0 {
		problems = append(problems, fmt.Errorf("min segment length %d is negative", o.MinSegmentLength))
	}
	if o.MMRLambda < 0 || o.MMRLambda > 1 {
		problems = append(problems, fmt.Errorf("mmr lambda %.3f outside [0,1]", o.MMRLambda))
	}
	if o.ExtractionRatio <= 0 || o.ExtractionRatio > 1 {
		problems = append(problems, fmt.Errorf("extraction ratio %.3f outside (0,1]", o.ExtractionRatio))
	}
	if o.MinSegments < 0 || o.MaxSegments < 0 {
		problems = append(problems, errors.New("segment bounds are negative"))
	}
	if o.MaxSegments > 0 && o.MinSegments > o.MaxSegments {
		problems = append(problems, fmt.Errorf("min segments %d exceeds max segments %d", o.MinSegments, o.MaxSegments))
	}
	if o.MaxSegmentsToEmbed < 0 {
		problems = append(problems, fmt.Errorf("embed ceiling %d is negative", o.MaxSegmentsToEmbed))
	}
	if o.PreFilterSampleSize < 0 {
		problems = append(problems, fmt.Errorf("pre-filter sample size %d is negative", o.PreFilterSampleSize))
	}
	if o.FallbackBucketSize < 0 {
		problems = append(problems, fmt.Errorf("fallback bucket size %d is negative", o.FallbackBucketSize))
	}
	if o.TopicAnchors < 1 {
		problems = append(problems, fmt.Errorf("topic anchor count %d below 1", o.TopicAnchors))
	}
	if o.MinLengthQualityScore < 0 || o.MinLengthQualityScore > 1 {
		problems = append(problems, fmt.Errorf("min length quality %.3f outside [0,1]", o.MinLengthQualityScore))
	}
	if o.IdealMinLength > o.IdealMaxLength {
		problems = append(problems, fmt.Errorf("ideal min length %d exceeds ideal max length %d", o.IdealMinLength, o.IdealMaxLength))
	}
	if o.HierarchicalBatchSize < 1 {
		problems = append(problems, fmt.Errorf("hierarchical batch size %d below 1", o.HierarchicalBatchSize))
	}
	if err := o.Pipeline.validate(); err != nil {
		problems = append(problems, err)
	}
	if len(problems) == 0 {
		return nil
	}
	return domain.WrapError(domain.ErrInvalidConfig, "validate options", errors.Join(problems...))
}

func (p PipelineOptions) validate() error {
	var problems []error
	if p.GlobalEmbedBudget < 0 {
		problems = append(problems, fmt.Errorf("global embed budget %d is negative", p.GlobalEmbedBudget))
	}
	if p.BootstrapChunks < 0 {
		problems = append(problems, fmt.Errorf("bootstrap chunks %d is negative", p.BootstrapChunks))
	}
	if p.BootstrapRate <= 0 || p.BootstrapRate > 1 {
		problems = append(problems, fmt.Errorf("bootstrap rate %.3f outside (0,1]", p.BootstrapRate))
	}
	if p.ChunkCap < 0 {
		problems = append(problems, fmt.Errorf("chunk cap %d is negative", p.ChunkCap))
	}
	if p.TrickleEveryChunks < 1 || p.TrickleCount < 0 {
		problems = append(problems, errors.New("trickle settings out of range"))
	}
	if p.TailStartFraction < 0 || p.TailStartFraction > 1 {
		problems = append(problems, fmt.Errorf("tail start fraction %.3f outside [0,1]", p.TailStartFraction))
	}
	if p.TailReserveFraction < 0 || p.TailReserveFraction >= 1 {
		problems = append(problems, fmt.Errorf("tail reserve fraction %.3f outside [0,1)", p.TailReserveFraction))
	}
	if p.EmbedBatchSize < 1 {
		problems = append(problems, fmt.Errorf("embed batch size %d below 1", p.EmbedBatchSize))
	}
	if p.DrainWait < 0 {
		problems = append(problems, fmt.Errorf("drain wait %s is negative", p.DrainWait))
	}
	return errors.Join(problems...)
}
