package limitless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/limitless-client/pkg/client"
	"github.com/Sternrassler/limitless-client/pkg/fanout"
	"github.com/Sternrassler/limitless-client/pkg/logging"
	"github.com/rs/zerolog"
)

// MaxLimit asks the list endpoint for every tournament in one page.
const MaxLimit uint64 = math.MaxUint64

// DefaultFormatID is the catalog entry the formats command shows by default.
const DefaultFormatID = "VGC"

var (
	// ErrNotArray is returned when a list endpoint does not answer with a
	// JSON array.
	ErrNotArray = errors.New("response is not a JSON array")

	// ErrMissingID is returned by strict decoding for an entry without a
	// string id.
	ErrMissingID = errors.New("entry has no string id")
)

// toursHeader is sent on every request of the tours path.
var toursHeader = client.WithHeader("Content-Type", "application/json")

// DecodeMode selects how the tournament list is decoded.
type DecodeMode string

const (
	// DecodeStrict fails on the first entry without a string id.
	DecodeStrict DecodeMode = "strict"

	// DecodeLoose logs and skips entries without a string id.
	DecodeLoose DecodeMode = "loose"
)

// Service exposes the Limitless endpoints used by the CLI.
// All methods are safe for concurrent use.
type Service struct {
	client *client.Client
	agg    *fanout.Aggregator
	decode DecodeMode
	logger zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithDecodeMode overrides the tournament list decoding (default: DecodeStrict).
func WithDecodeMode(mode DecodeMode) Option {
	return func(s *Service) {
		s.decode = mode
	}
}

// NewService creates a Service. A nil aggregator selects the default fan-out
// configuration with ClassifyFailure.
func NewService(c *client.Client, agg *fanout.Aggregator, opts ...Option) *Service {
	if c == nil {
		panic("limitless client cannot be nil")
	}
	if agg == nil {
		cfg := fanout.DefaultConfig()
		cfg.Classifier = ClassifyFailure
		agg = fanout.New(cfg)
	}

	s := &Service{
		client: c,
		agg:    agg,
		decode: DecodeStrict,
		logger: logging.NewLogger("limitless"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClassifyFailure maps client errors onto fan-out failure kinds.
func ClassifyFailure(err error) fanout.FailureKind {
	switch client.Classify(err) {
	case client.ErrorClassNetwork:
		return fanout.KindNetwork
	case client.ErrorClassClient, client.ErrorClassServer:
		return fanout.KindStatus
	case client.ErrorClassDecode:
		return fanout.KindDecode
	default:
		return fanout.DefaultClassifier(err)
	}
}

// ListTournaments returns every tournament of format.
func (s *Service) ListTournaments(ctx context.Context, format string) ([]TournamentRef, error) {
	query := url.Values{}
	query.Set("format", format)
	query.Set("limit", strconv.FormatUint(MaxLimit, 10))

	entries, err := s.getArray(ctx, "/tournaments?"+query.Encode(), toursHeader)
	if err != nil {
		return nil, fmt.Errorf("list tournaments for %q: %w", format, err)
	}

	var refs []TournamentRef
	switch s.decode {
	case DecodeLoose:
		refs = decodeLoose(entries, s.logger)
	default:
		refs, err = decodeStrict(entries)
		if err != nil {
			return nil, fmt.Errorf("list tournaments for %q: %w", format, err)
		}
	}

	s.logger.Debug().
		Str("format", format).
		Int("entries", len(entries)).
		Int("tournaments", len(refs)).
		Msg("Listed tournaments")

	return refs, nil
}

func decodeStrict(entries []json.RawMessage) ([]TournamentRef, error) {
	type wire struct {
		ID      *string `json:"id"`
		Name    string  `json:"name"`
		Game    string  `json:"game"`
		Format  string  `json:"format"`
		Date    string  `json:"date"`
		Players int     `json:"players"`
	}

	refs := make([]TournamentRef, 0, len(entries))
	for i, raw := range entries {
		var w wire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("tournament #%d: %w", i, err)
		}
		if w.ID == nil || *w.ID == "" {
			return nil, fmt.Errorf("tournament #%d: %w", i, ErrMissingID)
		}
		refs = append(refs, TournamentRef{
			ID:      *w.ID,
			Name:    w.Name,
			Game:    w.Game,
			Format:  w.Format,
			Date:    w.Date,
			Players: w.Players,
		})
	}
	return refs, nil
}

func decodeLoose(entries []json.RawMessage, logger zerolog.Logger) []TournamentRef {
	refs := make([]TournamentRef, 0, len(entries))
	for i, raw := range entries {
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("Skipping tournament entry")
			continue
		}
		id, ok := obj["id"].(string)
		if !ok || id == "" {
			logger.Warn().Int("index", i).Msg("Skipping tournament entry without id")
			continue
		}

		ref := TournamentRef{ID: id}
		ref.Name, _ = obj["name"].(string)
		ref.Game, _ = obj["game"].(string)
		ref.Format, _ = obj["format"].(string)
		ref.Date, _ = obj["date"].(string)
		if players, ok := obj["players"].(float64); ok {
			ref.Players = int(players)
		}
		refs = append(refs, ref)
	}
	return refs
}

// GetStandings fetches the standings of one tournament.
func (s *Service) GetStandings(ctx context.Context, tournamentID string) (Standings, error) {
	var standings Standings
	path := "/tournaments/" + url.PathEscape(tournamentID) + "/standings"
	if err := s.client.GetJSON(ctx, path, &standings, toursHeader); err != nil {
		return nil, err
	}
	return standings, nil
}

// Standings fetches the standings of every ref in parallel. It never fails as
// a whole; per-tournament failures are reported in the result.
func (s *Service) Standings(ctx context.Context, refs []TournamentRef) fanout.Result[Standings] {
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return fanout.Collect(ctx, s.agg, ids, s.GetStandings)
}

// TourReport is the outcome of Tours.
type TourReport struct {
	Format      string
	Tournaments []TournamentRef
	Standings   fanout.Result[Standings]
	Duration    time.Duration
}

// Tours lists the tournaments of format and fetches all their standings.
// Per-tournament failures are reported in the result. A failed list request
// returns a nil report; when ctx is cancelled during the fan-out the partial
// report is returned together with ctx.Err().
func (s *Service) Tours(ctx context.Context, format string) (*TourReport, error) {
	start := time.Now()

	refs, err := s.ListTournaments(ctx, format)
	if err != nil {
		return nil, err
	}

	report := &TourReport{
		Format:      format,
		Tournaments: refs,
		Standings:   s.Standings(ctx, refs),
	}
	report.Duration = time.Since(start)

	s.logger.Info().
		Str("format", format).
		Int("tournaments", len(refs)).
		Int("standings_fetched", len(report.Standings.Records)).
		Int("standings_failed", len(report.Standings.Failures)).
		Dur("duration", report.Duration).
		Msg("Tours complete")

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("tours for %q interrupted: %w", format, err)
	}
	return report, nil
}

// ListFormats returns the games catalog entries whose id equals id.
// An empty id returns the whole catalog.
func (s *Service) ListFormats(ctx context.Context, id string) ([]Format, error) {
	entries, err := s.getArray(ctx, "/games")
	if err != nil {
		return nil, fmt.Errorf("list formats: %w", err)
	}

	var formats []Format
	for i, raw := range entries {
		var entry struct {
			ID any `json:"id"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			s.logger.Debug().Err(err).Int("index", i).Msg("Skipping catalog entry")
			continue
		}
		entryID, _ := entry.ID.(string)
		if id != "" && entryID != id {
			continue
		}
		formats = append(formats, Format{ID: entryID, Raw: raw})
	}
	return formats, nil
}

// getArray fetches path and splits a top-level JSON array into its elements.
func (s *Service) getArray(ctx context.Context, path string, opts ...client.RequestOption) ([]json.RawMessage, error) {
	var body json.RawMessage
	if err := s.client.GetJSON(ctx, path, &body, opts...); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: got %s", ErrNotArray, jsonKind(trimmed))
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("decode array: %w", err)
	}
	return entries, nil
}

func jsonKind(data []byte) string {
	if len(data) == 0 {
		return "empty body"
	}
	switch data[0] {
	case '{':
		return "object"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
