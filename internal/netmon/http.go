package netmon

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/pkg/api"
)

// ProbeTarget адреса, по которым измеряется канал.
type ProbeTarget struct {
	Health string // Health короткий запрос для RTT и потерь
	Probe  string // Probe загрузка блока для оценки полосы
}

// TargetFor возвращает адреса облачной реплики baseURL.
func TargetFor(baseURL string) ProbeTarget {
	base := strings.TrimRight(baseURL, "/")
	return ProbeTarget{
		Health: base + api.PathHealth,
		Probe:  base + api.PathProbe,
	}
}

// HTTPProber измеряет канал HTTP-запросами к облачной реплике.
type HTTPProber struct {
	client     *http.Client
	now        func() time.Time
	target     ProbeTarget
	pings      int
	probeBytes int
}

var _ Sampler = (*HTTPProber)(nil)

// NewHTTPProber создает измеритель: pings запросов health на снимок
// и загрузка probeBytes байт для оценки полосы.
func NewHTTPProber(client *http.Client, target ProbeTarget, pings, probeBytes int) *HTTPProber {
	if pings <= 0 {
		pings = 3
	}
	if probeBytes <= 0 {
		probeBytes = 8192
	}
	return &HTTPProber{
		client:     client,
		now:        time.Now,
		target:     target,
		pings:      pings,
		probeBytes: probeBytes,
	}
}

// Sample выполняет серию проб. Недоступный пир дает снимок с полными
// потерями, а не ошибку; ошибка возвращается только при отмене ctx.
func (p *HTTPProber) Sample(ctx context.Context) (models.NetworkSample, error) {
	var (
		rtts   []time.Duration
		failed int
	)
	for i := 0; i < p.pings; i++ {
		rtt, err := p.ping(ctx)
		if ctx.Err() != nil {
			return models.NetworkSample{}, ctx.Err()
		}
		if err != nil {
			failed++
			continue
		}
		rtts = append(rtts, rtt)
	}

	s := models.NetworkSample{
		At:       p.now(),
		LossRate: float64(failed) / float64(p.pings),
	}
	if len(rtts) == 0 {
		return s, nil
	}

	s.RTT, s.Jitter = meanStdDev(rtts)
	if bw, err := p.bandwidth(ctx); err == nil {
		s.Bandwidth = bw
	} else if ctx.Err() != nil {
		return models.NetworkSample{}, ctx.Err()
	}
	s.Stability = Stability(s)
	return s, nil
}

func (p *HTTPProber) ping(ctx context.Context) (time.Duration, error) {
	start := p.now()
	if _, err := p.get(ctx, p.target.Health); err != nil {
		return 0, err
	}
	return p.now().Sub(start), nil
}

// bandwidth возвращает оценку полосы в байтах в секунду.
func (p *HTTPProber) bandwidth(ctx context.Context) (float64, error) {
	u, err := url.Parse(p.target.Probe)
	if err != nil {
		return 0, fmt.Errorf("invalid probe url: %w", err)
	}
	q := u.Query()
	q.Set("bytes", strconv.Itoa(p.probeBytes))
	u.RawQuery = q.Encode()

	start := p.now()
	n, err := p.get(ctx, u.String())
	if err != nil {
		return 0, err
	}
	elapsed := p.now().Sub(start)
	if elapsed <= 0 {
		elapsed = time.Microsecond
	}
	return float64(n) / elapsed.Seconds(), nil
}

func (p *HTTPProber) get(ctx context.Context, target string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return n, nil
}

// Stability оценивает устойчивость канала от 0 до 1 по потерям
// и относительному джиттеру.
func Stability(s models.NetworkSample) float64 {
	if s.RTT <= 0 {
		return math.Max(0, 1-s.LossRate)
	}
	relJitter := float64(s.Jitter) / float64(s.RTT)
	return math.Max(0, (1-s.LossRate)/(1+relJitter))
}

func meanStdDev(ds []time.Duration) (time.Duration, time.Duration) {
	var sum float64
	for _, d := range ds {
		sum += float64(d)
	}
	mean := sum / float64(len(ds))
	if len(ds) < 2 {
		return time.Duration(mean), 0
	}

	var sq float64
	for _, d := range ds {
		sq += (float64(d) - mean) * (float64(d) - mean)
	}
	return time.Duration(mean), time.Duration(math.Sqrt(sq / float64(len(ds)-1)))
}
