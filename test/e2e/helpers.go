//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doclane/doclane/internal/api/handlers"
	"github.com/doclane/doclane/internal/chunker"
	"github.com/doclane/doclane/internal/repository"
	"github.com/doclane/doclane/internal/server"
	"github.com/doclane/doclane/internal/service"
	"github.com/doclane/doclane/internal/storage"
	"github.com/doclane/doclane/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	AuthSvc      *service.AuthService
	TenantID     string
	APIKeyToken  string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-uploads",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser, authSvc := startServer(t, pool, s3Client, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		AuthSvc:      authSvc,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Bootstrap creates a tenant and API key for testing. There is no public
// tenant API; provisioning goes through the admin service, same as the
// doclaned admin commands.
func (e *E2ETestEnv) Bootstrap() {
	tenant, err := e.AuthSvc.CreateTenant(e.Ctx, "e2e-tenant")
	if err != nil {
		e.T.Fatalf("failed to create tenant: %v", err)
	}
	e.TenantID = tenant.ID

	token, err := e.AuthSvc.CreateAPIKey(e.Ctx, tenant.ID, "e2e-test-key")
	if err != nil {
		e.T.Fatalf("failed to create API key: %v", err)
	}
	e.APIKeyToken = token
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parseResponse(resp)
}

// UploadDocument sends a multipart upload the way the doclane CLI does.
func (e *E2ETestEnv) UploadDocument(filename string, content []byte, allowedRoles []string) (*APIResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if len(allowedRoles) > 0 {
		if err := writer.WriteField("allowed_roles", strings.Join(allowedRoles, ",")); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKeyToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parseResponse(resp)
}

// WaitForDocument polls the document until it reaches the wanted status.
func (e *E2ETestEnv) WaitForDocument(docID, wantStatus string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	var lastStatus string
	for time.Now().Before(deadline) {
		resp, err := e.Get("/documents/"+docID, e.APIKeyToken)
		if err == nil {
			var doc struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			}
			if json.Unmarshal(resp.Data, &doc) == nil {
				lastStatus = doc.Status
				if doc.Status == wantStatus {
					return
				}
				if doc.Status == "error" {
					e.T.Fatalf("document %s failed ingestion: %s", docID, doc.Error)
				}
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("document %s did not reach status %q within %v (last: %q)", docID, wantStatus, timeout, lastStatus)
}

func parseResponse(resp *http.Response) (*APIResponse, error) {
	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer starts the HTTP server with all handlers. Embedding and
// reranking use deterministic in-process fakes so the tests need no
// OpenAI credentials.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, func(), *service.AuthService) {
	tenantRepo := repository.NewTenantRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	docRepo := repository.NewDocumentRepository(pool)
	passageRepo := repository.NewPassageRepository(pool)
	logRepo := repository.NewRetrievalLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(tenantRepo, apiKeyRepo, uuidGen)

	embedder := &wordHashEmbedder{}
	reranker := &overlapReranker{}

	var store service.ObjectStore = s3Client
	ingestSvc := service.NewIngestService(docRepo, passageRepo, txRunner, embedder, store, uuidGen, chunker.DefaultConfig())
	cache := service.NewRetrievalCache(time.Minute)
	engine := service.NewRetrievalEngine(tenantRepo, passageRepo, embedder, reranker, cache, logRepo)

	cfg := server.RouterConfig{
		AuthValidator:   authSvc,
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc),
		RetrieveHandler: handlers.NewRetrieveHandler(engine),
	}

	router := server.NewRouter(cfg)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, authSvc
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// wordHashEmbedder maps text to a bag-of-words vector: each word is
// hashed to a dimension and counted, then the vector is L2-normalized.
// Texts sharing words land close under cosine distance, which is enough
// signal for the retrieval pipeline to produce stable rankings.
type wordHashEmbedder struct{}

func (e *wordHashEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	const dims = 1536

	vec := make([]float32, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%dims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (e *wordHashEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// overlapReranker scores passages by query word overlap.
type overlapReranker struct{}

func (r *overlapReranker) ScorePassages(ctx context.Context, query string, passages []string) ([]float64, error) {
	queryWords := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		queryWords[w] = true
	}

	scores := make([]float64, len(passages))
	for i, p := range passages {
		var hits int
		words := strings.Fields(strings.ToLower(p))
		for _, w := range words {
			if queryWords[w] {
				hits++
			}
		}
		if len(words) > 0 {
			scores[i] = float64(hits) / float64(len(words))
		}
	}
	return scores, nil
}
