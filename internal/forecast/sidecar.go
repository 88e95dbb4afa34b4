package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"forecastd/pkg/types"
)

// Sidecar implements Backend by talking to a model server over HTTP. The
// server owns the weights; this process only holds an opaque handle.
type Sidecar struct {
	baseURL    string
	apiKey     string
	reqTimeout time.Duration
	httpClient *http.Client
	log        zerolog.Logger
}

// NewSidecar constructs a server-backed backend.
func NewSidecar(baseURL, apiKey string, reqTimeout, connectTimeout time.Duration, log zerolog.Logger) *Sidecar {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout=0: every call carries a context deadline instead.
	cli := &http.Client{Transport: tr, Timeout: 0}
	return &Sidecar{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		reqTimeout: reqTimeout,
		httpClient: cli,
		log:        log,
	}
}

type sidecarLoadRequest struct {
	Variant       string `json:"variant"`
	TokenizerPath string `json:"tokenizer_path"`
	ModelPath     string `json:"model_path"`
	Device        string `json:"device"`
	MaxContext    int    `json:"max_context"`
}

type sidecarLoadResponse struct {
	Handle string `json:"handle"`
}

type sidecarPredictRequest struct {
	Handle      string      `json:"handle"`
	Series      []types.Bar `json:"series"`
	PredLen     int         `json:"pred_len"`
	Temperature float64     `json:"T"`
	TopP        float64     `json:"top_p"`
	SampleCount int         `json:"sample_count"`
	Seed        uint64      `json:"seed,omitempty"`
}

type sidecarPredictResponse struct {
	Periods []Period `json:"periods"`
}

type sidecarHandle struct {
	backend *Sidecar
	handle  string
}

func (s *Sidecar) Load(ctx context.Context, req LoadRequest) (Predictor, error) {
	var out sidecarLoadResponse
	err := s.post(ctx, "/v1/load", sidecarLoadRequest{
		Variant:       req.VariantID,
		TokenizerPath: req.Tokenizer.Path,
		ModelPath:     req.Model.Path,
		Device:        req.Device,
		MaxContext:    req.ContextLength,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Handle == "" {
		return nil, errors.New("sidecar returned empty handle")
	}
	s.log.Info().Str("variant", req.VariantID).Str("handle", out.Handle).Msg("sidecar model loaded")
	return &sidecarHandle{backend: s, handle: out.Handle}, nil
}

func (s *Sidecar) Unload(p Predictor) error {
	h, ok := p.(*sidecarHandle)
	if !ok {
		return fmt.Errorf("unexpected predictor type %T", p)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.post(ctx, "/v1/unload", map[string]string{"handle": h.handle}, nil)
}

func (h *sidecarHandle) Predict(ctx context.Context, series []types.Bar, horizon int, params SamplingParams) ([]Period, error) {
	var out sidecarPredictResponse
	err := h.backend.post(ctx, "/v1/predict", sidecarPredictRequest{
		Handle:      h.handle,
		Series:      series,
		PredLen:     horizon,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		SampleCount: params.SampleCount,
		Seed:        params.Seed,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Periods, nil
}

func (s *Sidecar) post(ctx context.Context, path string, in, out any) error {
	if s.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.reqTimeout)
		defer cancel()
	}
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sidecar %s: %s: %s", path, resp.Status, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sidecar %s: decode: %w", path, err)
	}
	return nil
}
