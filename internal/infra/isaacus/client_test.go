package isaacus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient は httptest サーバに向けた Client を作成する
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("test-api-key",
		WithBaseURL(server.URL),
		WithRequestsPerSecond(1000),
	)
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("APIキー未設定は設定エラー", func(t *testing.T) {
		_, err := NewClient("")
		assert.ErrorIs(t, err, ErrAPIKeyNotSet)
	})

	t.Run("APIキーがあれば作成できる", func(t *testing.T) {
		client, err := NewClient("key")
		require.NoError(t, err)
		assert.NotNil(t, client)
	})
}

func TestClient_post(t *testing.T) {
	t.Run("認証ヘッダとContent-Typeを付与する", func(t *testing.T) {
		var gotAuth, gotContentType string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotContentType = r.Header.Get("Content-Type")
			_ = json.NewEncoder(w).Encode(map[string]any{})
		})

		var out map[string]any
		err := client.post(context.Background(), "/embeddings", map[string]string{"k": "v"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "Bearer test-api-key", gotAuth)
		assert.Equal(t, "application/json", gotContentType)
	})

	t.Run("4xxはリトライせずAPIErrorを返す", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"message": "invalid model"}}`))
		})

		var out map[string]any
		err := client.post(context.Background(), "/embeddings", map[string]string{}, &out)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "invalid model", apiErr.Message)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("5xxはリトライして成功すれば結果を返す", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		var out map[string]string
		err := client.post(context.Background(), "/embeddings", map[string]string{}, &out)
		require.NoError(t, err)
		assert.Equal(t, "ok", out["status"])
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("リトライ待機中のキャンセルは即座に返る", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			var out map[string]any
			done <- client.post(ctx, "/embeddings", map[string]string{}, &out)
		}()
		cancel()

		err := <-done
		assert.Error(t, err)
	})

	t.Run("壊れたレスポンスボディはエラー", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{invalid`))
		})

		var out map[string]any
		err := client.post(context.Background(), "/embeddings", map[string]string{}, &out)
		assert.ErrorContains(t, err, "malformed response")
	})
}

func TestEmbedder_EmbedDocuments(t *testing.T) {
	t.Run("空入力はネットワーク呼び出しなしで空を返す", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		})
		embedder := NewEmbedder(client)

		vectors, err := embedder.EmbedDocuments(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("サブバッチ分割しても入力順を保つ", func(t *testing.T) {
		var mu sync.Mutex
		requestedBatches := make([][]string, 0)
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var req embeddingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			mu.Lock()
			requestedBatches = append(requestedBatches, req.Texts)
			mu.Unlock()

			// 入力ごとに一意なベクトルを返す（先頭要素 = テキスト長）
			resp := embeddingResponse{}
			for i, text := range req.Texts {
				resp.Embeddings = append(resp.Embeddings, embeddingData{
					Index:     i,
					Embedding: []float32{float32(len(text))},
				})
			}
			_ = json.NewEncoder(w).Encode(resp)
		})
		embedder := NewEmbedder(client, WithEmbeddingBatchSize(2))

		texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
		vectors, err := embedder.EmbedDocuments(context.Background(), texts)
		require.NoError(t, err)

		require.Len(t, vectors, len(texts))
		for i, text := range texts {
			assert.Equal(t, float32(len(text)), vectors[i][0], "入力 %d の順序が崩れている", i)
		}
		assert.Len(t, requestedBatches, 3)
	})

	t.Run("レスポンスのindexに従って配置する", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			// 逆順で返しても呼び出し側で正しく並ぶこと
			_ = json.NewEncoder(w).Encode(embeddingResponse{
				Embeddings: []embeddingData{
					{Index: 1, Embedding: []float32{2}},
					{Index: 0, Embedding: []float32{1}},
				},
			})
		})
		embedder := NewEmbedder(client)

		vectors, err := embedder.EmbedDocuments(context.Background(), []string{"x", "y"})
		require.NoError(t, err)
		assert.Equal(t, float32(1), vectors[0][0])
		assert.Equal(t, float32(2), vectors[1][0])
	})

	t.Run("件数不一致はエラー", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(embeddingResponse{
				Embeddings: []embeddingData{{Index: 0, Embedding: []float32{1}}},
			})
		})
		embedder := NewEmbedder(client)

		_, err := embedder.EmbedDocuments(context.Background(), []string{"x", "y"})
		assert.ErrorContains(t, err, "count mismatch")
	})
}

func TestEmbedder_EmbedQuery(t *testing.T) {
	t.Run("クエリ用タスク識別子でリクエストする", func(t *testing.T) {
		var gotTask string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var req embeddingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			gotTask = req.Task
			_ = json.NewEncoder(w).Encode(embeddingResponse{
				Embeddings: []embeddingData{{Index: 0, Embedding: []float32{0.5}}},
			})
		})
		embedder := NewEmbedder(client)

		vector, err := embedder.EmbedQuery(context.Background(), "契約の解除条件は")
		require.NoError(t, err)
		assert.Equal(t, taskRetrievalQuery, gotTask)
		assert.Equal(t, []float32{0.5}, vector)
	})

	t.Run("空クエリはエラー", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("呼び出されてはならない")
		})
		embedder := NewEmbedder(client)

		_, err := embedder.EmbedQuery(context.Background(), "")
		assert.Error(t, err)
	})
}

func TestReranker_Rerank(t *testing.T) {
	t.Run("API返却順を保ち入力位置をOriginalIndexに持つ", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var req rerankRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "解除条項", req.Query)
			_ = json.NewEncoder(w).Encode(rerankResponse{
				Results: []rerankResult{
					{Index: 2, RelevanceScore: 0.9},
					{Index: 0, RelevanceScore: 0.4},
					{Index: 1, RelevanceScore: 0.1},
				},
			})
		})
		reranker := NewReranker(client)

		results, err := reranker.Rerank(context.Background(), "解除条項", []string{"甲", "乙", "丙"})
		require.NoError(t, err)

		require.Len(t, results, 3)
		assert.Equal(t, 2, results[0].OriginalIndex)
		assert.Equal(t, "丙", results[0].Content)
		assert.Equal(t, 0.9, results[0].RelevanceScore)
		assert.Equal(t, 0, results[1].OriginalIndex)
		assert.Equal(t, 1, results[2].OriginalIndex)
	})

	t.Run("範囲外indexはエラー", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(rerankResponse{
				Results: []rerankResult{{Index: 5, RelevanceScore: 0.9}},
			})
		})
		reranker := NewReranker(client)

		_, err := reranker.Rerank(context.Background(), "q", []string{"a"})
		assert.ErrorContains(t, err, "out of range")
	})
}

func TestExtractor_ExtractAnswer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req extractionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.TopK)
		_ = json.NewEncoder(w).Encode(extractionResponse{
			Answers: []extractedAnswer{
				{Text: "30日前の書面通知", Score: 0.87, Start: 10, End: 19},
			},
		})
	})
	extractor := NewExtractor(client)

	answers, err := extractor.ExtractAnswer(context.Background(), "解除の通知期限は", "本契約は30日前の書面通知により解除できる", 3)
	require.NoError(t, err)

	require.Len(t, answers, 1)
	assert.Equal(t, "30日前の書面通知", answers[0].Text)
	assert.InDelta(t, 87.0, answers[0].Confidence, 0.001)
	assert.Equal(t, 10, answers[0].StartOffset)
	assert.Equal(t, 19, answers[0].EndOffset)
}

func TestClassifier_Classify(t *testing.T) {
	t.Run("スコアは入力ラベルと同順で返す", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var req classificationRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.True(t, req.MultiLabel)
			scores := make([]classificationScore, len(req.Labels))
			for i, label := range req.Labels {
				scores[i] = classificationScore{Label: label, Score: float64(i) * 0.1}
			}
			_ = json.NewEncoder(w).Encode(classificationResponse{Classifications: scores})
		})
		classifier := NewClassifier(client)

		labels := []string{"契約", "訴訟", "規制"}
		scores, err := classifier.Classify(context.Background(), "本件について", labels, true)
		require.NoError(t, err)

		require.Len(t, scores, 3)
		for i, label := range labels {
			assert.Equal(t, label, scores[i].Label)
			assert.InDelta(t, float64(i)*0.1, scores[i].Score, 0.001)
		}
	})

	t.Run("件数不一致はエラー", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(classificationResponse{
				Classifications: []classificationScore{{Label: "a", Score: 0.5}},
			})
		})
		classifier := NewClassifier(client)

		_, err := classifier.Classify(context.Background(), "text", []string{"a", "b"}, false)
		assert.ErrorContains(t, err, "count mismatch")
	})
}
