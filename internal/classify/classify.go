// Package classify asks a language model whether uncatalogued service
// categories are real local-business categories, and which taxonomy entry
// they belong to.
package classify

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadmap/internal/market"
	"github.com/sells-group/leadmap/internal/resilience"
	"github.com/sells-group/leadmap/pkg/anthropic"
)

// Candidate is an "other" category seen in the lead data.
type Candidate struct {
	Category string `json:"category"`
	Leads    int    `json:"leads"`
	Markets  int    `json:"markets"`
}

// Candidates collects the non-taxonomy categories across res, most common
// first. limit <= 0 returns all of them.
func Candidates(res *market.Result, limit int) []Candidate {
	byName := make(map[string]*Candidate)
	for _, m := range res.Markets {
		for name, n := range m.Other {
			c, ok := byName[name]
			if !ok {
				c = &Candidate{Category: name}
				byName[name] = c
			}
			c.Leads += n
			c.Markets++
		}
	}
	out := make([]Candidate, 0, len(byName))
	for _, c := range byName {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b Candidate) int {
		if c := cmp.Compare(b.Leads, a.Leads); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Verdict is the model's answer for one candidate. Err is set when the call
// failed; the other fields are then zero.
type Verdict struct {
	Candidate
	Legitimate bool    `json:"legitimate"`
	Confidence float64 `json:"confidence"`
	Suggested  string  `json:"suggested,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Err        string  `json:"error,omitempty"`
}

// Options configures a Classifier.
type Options struct {
	Model       string
	MaxTokens   int64
	Concurrency int
	// RateLimit is requests per second; zero disables limiting.
	RateLimit  float64
	RetryCount int
}

// Classifier fans candidates out to the model with bounded concurrency.
type Classifier struct {
	client  anthropic.Client
	opts    Options
	core    []string
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// New creates a Classifier. core is the canonical taxonomy, offered to the
// model as mapping targets.
func New(client anthropic.Client, opts Options, core []string) *Classifier {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 256
	}
	c := &Classifier{client: client, opts: opts, core: core}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(math.Ceil(opts.RateLimit))))
	}
	c.retry = resilience.FromRetryCount(opts.RetryCount)
	c.retry.ShouldRetry = func(err error) bool {
		return resilience.IsTransientHTTPStatus(anthropic.StatusCode(err)) || resilience.IsTransient(err)
	}
	c.retry.OnRetry = resilience.RetryLogger("anthropic", "classify")
	return c
}

// Classify returns one verdict per candidate in input order. A failed call
// yields a verdict with Err set; only cancellation fails the whole run.
func (c *Classifier) Classify(ctx context.Context, cands []Candidate) ([]Verdict, anthropic.TokenUsage, error) {
	var (
		mu    sync.Mutex
		usage anthropic.TokenUsage
	)
	verdicts := make([]Verdict, len(cands))
	system := anthropic.CachedSystem(c.systemPrompt())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for i, cand := range cands {
		g.Go(func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(gctx); err != nil {
					return eris.Wrap(err, "classify: rate limit wait")
				}
			}

			resp, err := resilience.DoVal(gctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
				return c.client.CreateMessage(ctx, anthropic.MessageRequest{
					Model:     c.opts.Model,
					MaxTokens: c.opts.MaxTokens,
					System:    system,
					Messages:  []anthropic.Message{{Role: "user", Content: userPrompt(cand)}},
				})
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zap.L().Warn("classify: call failed", zap.String("category", cand.Category), zap.Error(err))
				verdicts[i] = Verdict{Candidate: cand, Err: err.Error()}
				return nil
			}

			v, err := c.parse(resp.Text())
			if err != nil {
				zap.L().Debug("classify: unparseable reply", zap.String("category", cand.Category), zap.Error(err))
				v.Err = err.Error()
			}
			v.Candidate = cand
			verdicts[i] = v

			mu.Lock()
			usage.Add(resp.Usage)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, usage, eris.Wrap(err, "classify: run")
	}
	usage.LogCost(c.opts.Model, "classify")
	return verdicts, usage, nil
}

func (c *Classifier) systemPrompt() string {
	return "You review business categories scraped from local-business listings. " +
		"Decide whether each category names a real kind of local service business " +
		"that a homeowner or small business could hire. Scraper noise, generic words, " +
		"addresses and non-commercial places are not legitimate.\n\n" +
		"If the category is a variant of one of these canonical categories, name it:\n- " +
		strings.Join(c.core, "\n- ") +
		"\n\nReply with only a JSON object: " +
		`{"legitimate": true|false, "confidence": 0.0-1.0, "canonical": "<canonical category or empty>", "reason": "<one short sentence>"}`
}

func userPrompt(c Candidate) string {
	return fmt.Sprintf("Category: %q\nSeen on %d listings in %d markets.", c.Category, c.Leads, c.Markets)
}

func (c *Classifier) parse(text string) (Verdict, error) {
	var raw struct {
		Legitimate bool    `json:"legitimate"`
		Confidence float64 `json:"confidence"`
		Canonical  string  `json:"canonical"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		return Verdict{}, eris.Wrap(err, "classify: decode reply")
	}
	v := Verdict{
		Legitimate: raw.Legitimate,
		Confidence: math.Min(1, math.Max(0, raw.Confidence)),
		Reason:     raw.Reason,
	}
	for _, name := range c.core {
		if strings.EqualFold(name, strings.TrimSpace(raw.Canonical)) {
			v.Suggested = name
			break
		}
	}
	return v, nil
}

// cleanJSON strips markdown fences and surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
