package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talentdesk/cv-analysis-back/internal/ai"
	"github.com/talentdesk/cv-analysis-back/internal/cache"
	"github.com/talentdesk/cv-analysis-back/internal/extract"
	httpserver "github.com/talentdesk/cv-analysis-back/internal/http"
	"github.com/talentdesk/cv-analysis-back/internal/http/handlers"
	"github.com/talentdesk/cv-analysis-back/internal/queue"
	"github.com/talentdesk/cv-analysis-back/internal/repository"
	"github.com/talentdesk/cv-analysis-back/internal/service"
	"github.com/talentdesk/cv-analysis-back/internal/storage"
	"github.com/talentdesk/cv-analysis-back/internal/worker"
)

const loadResume = `John Smith
john.smith@example.com | +1 555 0101
Summary: Full stack engineer focused on backend services and data pipelines.
Experience: Engineer at Example Inc, 2018-2024. Shipped APIs used by millions.
Education: BSc Software Engineering, Tech University, 2014.
Skills: Go, Redis, PostgreSQL, Kubernetes.`

const loadModelOutput = `{
  "section_completeness": {
    "contact": 1.0, "summary": 0.8, "experience": 0.8,
    "education": 0.8, "skills": 0.9, "certifications": 0.0
  },
  "relevance_score": 74,
  "grammar_issues": [],
  "formatting_issues": [],
  "suggestions": ["Add certifications"],
  "strengths": ["Strong skills section"],
  "weaknesses": ["No certifications"],
  "overall_score": 76
}`

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Results        []scenarioResult `json:"results"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

type benchmarkEnv struct {
	server  *httptest.Server
	scoring *httptest.Server
	cancel  context.CancelFunc
}

func main() {
	uploadsTotal := flag.Int("uploads-total", 240, "total document upload requests")
	uploadsConcurrency := flag.Int("uploads-concurrency", 24, "concurrency for upload requests")
	statusTotal := flag.Int("status-total", 400, "total status poll requests")
	statusConcurrency := flag.Int("status-concurrency", 32, "concurrency for status poll requests")
	listTotal := flag.Int("list-total", 160, "total list requests")
	listConcurrency := flag.Int("list-concurrency", 20, "concurrency for list requests")
	outputPath := flag.String("output", "", "optional path to persist benchmark results JSON")
	flag.Parse()

	env, err := startBenchmarkEnvironment()
	if err != nil {
		log.Fatalf("failed to start local benchmark environment: %v", err)
	}
	defer env.cancel()

	client := &http.Client{Timeout: 10 * time.Second}

	var jobIDsMu sync.Mutex
	jobIDs := make([]string, 0, *uploadsTotal)
	var uploadCounter int64

	uploadsScenario := runScenario("documents_upload", *uploadsTotal, *uploadsConcurrency, func(index int) error {
		requestID := atomic.AddInt64(&uploadCounter, 1)
		jobID, err := uploadDocument(client, env.server.URL, fmt.Sprintf("resume-%d.txt", requestID))
		if err != nil {
			return err
		}
		jobIDsMu.Lock()
		jobIDs = append(jobIDs, jobID)
		jobIDsMu.Unlock()
		return nil
	})

	statusScenario := runScenario("analyses_status", *statusTotal, *statusConcurrency, func(index int) error {
		jobIDsMu.Lock()
		count := len(jobIDs)
		if count == 0 {
			jobIDsMu.Unlock()
			return fmt.Errorf("no jobs submitted yet")
		}
		jobID := jobIDs[index%count]
		jobIDsMu.Unlock()
		return getJSON(client, env.server.URL+"/v1/analyses/"+jobID, http.StatusOK)
	})

	listScenario := runScenario("analyses_list", *listTotal, *listConcurrency, func(index int) error {
		query := fmt.Sprintf("%s/v1/analyses?limit=20&offset=%d", env.server.URL, (index%5)*20)
		return getJSON(client, query, http.StatusOK)
	})

	results := []scenarioResult{uploadsScenario, statusScenario, listScenario}
	slo := map[string]bool{
		"upload_endpoint_p95_le_2000ms": uploadsScenario.P95MS <= 2000,
		"status_endpoint_p95_le_500ms":  statusScenario.P95MS <= 500,
	}

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    "local-httptest",
		Results:        results,
		SLOEvaluation:  slo,
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal benchmark report: %v", err)
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			log.Fatalf("failed to write output file: %v", err)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, string(encoded))
}

func startBenchmarkEnvironment() (*benchmarkEnv, error) {
	scoring := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"model": "gpt-4.1-mini",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": loadModelOutput}},
			},
			"usage": map[string]any{"prompt_tokens": 900, "completion_tokens": 280, "total_tokens": 1180},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)

	repo := repository.NewMemoryJobsRepository()
	documents := storage.NewMemoryDocumentStore()
	localQueue := queue.NewLocalQueue(4096, 3, logger)

	scoringClient := ai.NewScoringClient(ai.ScoringClientConfig{
		APIKey:  "bench-key",
		BaseURL: scoring.URL,
		Timeout: 5 * time.Second,
	})
	scorer := service.NewScoringService(service.ScoringDependencies{
		Router: ai.NewModelRouter(ai.ModelRouterConfig{}),
		Client: scoringClient,
		Cache:  cache.NewResultCache(cache.Config{TTL: 10 * time.Minute, MaxEntries: 4000}),
		Logger: logger,
	})

	analysisService := service.NewAnalysisService(repo, documents, localQueue)
	api := handlers.NewAPI(analysisService, 10<<20)
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      "",
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	extractor := extract.NewExtractor(logger)
	processor := worker.NewProcessor(localQueue, repo, documents, extractor, scorer, logger)
	go processor.Start(ctx)

	server := httptest.NewServer(router)
	return &benchmarkEnv{
		server:  server,
		scoring: scoring,
		cancel: func() {
			cancel()
			server.Close()
			scoring.Close()
		},
	}, nil
}

func uploadDocument(client *http.Client, baseURL, filename string) (string, error) {
	body := bytes.NewBuffer(nil)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("document", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write([]byte(loadResume)); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.WriteField("subject_refs", "bench-candidate"); err != nil {
		return "", fmt.Errorf("write form field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, baseURL+"/v1/documents", body)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := client.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return "", fmt.Errorf("unexpected upload status %d: %s", response.StatusCode, string(raw))
	}

	var decoded struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return decoded.JobID, nil
}

func runScenario(
	name string,
	total int,
	concurrency int,
	requestFn func(index int) error,
) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startedAt := time.Now()
	type sample struct {
		durationMS float64
		err        string
	}

	jobs := make(chan int, total)
	results := make(chan sample, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				requestStart := time.Now()
				err := requestFn(index)
				s := sample{
					durationMS: float64(time.Since(requestStart).Microseconds()) / 1000.0,
				}
				if err != nil {
					s.err = err.Error()
				}
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success := 0
	errorsCount := 0
	for item := range results {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		errorsCount++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}

	sort.Float64s(durations)
	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	return scenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        errorsCount,
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
}

func getJSON(client *http.Client, url string, expectedStatus int) error {
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return round2(values[0])
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}
	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return round2(values[rank])
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
