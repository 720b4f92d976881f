package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"

// The service is instructed to answer with exactly this object. Field names
// are the legacy Spanish ones, kept for compatibility with the stored prompt
// contract.
type verdictResponse struct {
	EsVenta   *bool    `json:"esVenta"`
	Cantidad  *float64 `json:"cantidad"`
	Ubicacion string   `json:"ubicacion"`
}

// saleClassifier is one interchangeable classification provider.
type saleClassifier interface {
	Name() string
	Classify(transcript string) (SaleVerdict, error)
}

// SaleDetector tries each configured provider in order and degrades to the
// default no-sale verdict when all fail. Its output is advisory only; see
// AcceptSale.
type SaleDetector struct {
	providers []saleClassifier
}

func NewSaleDetector(cfg Config) *SaleDetector {
	var providers []saleClassifier
	if cfg.AnthropicAPIKey != "" {
		model := cfg.AnthropicModel
		if model == "" {
			model = defaultAnthropicModel
		}
		providers = append(providers, &anthropicClassifier{apiKey: cfg.AnthropicAPIKey, model: model})
	}
	if cfg.OpenAIAPIKey != "" {
		model := cfg.OpenAIModel
		if model == "" {
			model = defaultOpenAIModel
		}
		providers = append(providers, &openAIClassifier{apiKey: cfg.OpenAIAPIKey, baseURL: cfg.OpenAIBaseURL, model: model})
	}
	return &SaleDetector{providers: providers}
}

// Detect classifies a role-tagged transcript. Transport and parse failures
// are logged and absorbed: the caller always gets a verdict.
func (d *SaleDetector) Detect(transcript string) SaleVerdict {
	prompt := buildSaleAuditPrompt(transcript)

	for _, p := range d.providers {
		verdict, err := p.Classify(prompt)
		if err != nil {
			log.Printf("llm %s error: %v", p.Name(), err)
			continue
		}
		log.Printf("llm %s verdict sale=%t qty=%d location=%q", p.Name(), verdict.IsSale, verdict.Quantity, verdict.Location)
		return verdict
	}
	return SaleVerdict{}
}

// buildSaleAuditPrompt wraps the transcript in the strict-auditor contract.
// The closure rules matter more than the examples: a window whose last
// message is from the customer is never a sale, and a confirmation that the
// customer has already talked past is stale and must not be re-reported.
func buildSaleAuditPrompt(transcript string) string {
	return `Actúa como un Auditor de Ventas Estricto para un negocio de agua en Chile.
Tu misión es determinar si una venta se CERRÓ con éxito basándote en la conversación.

REGLA DE ORO DE CIERRE (EXTREMA):
- Una venta SOLO es exitosa (esVenta: true) si el Cliente solicita Y el Vendedor responde CONFIRMANDO (ej: ok, voy, listo, perfecto).
- REGLA ABSOLUTA: Si el ÚLTIMO mensaje de la conversación es del CLIENTE, "esVenta" DEBE ser false. No importa lo que se haya dicho antes.
- REGLA DE NO REPETICIÓN: Si el vendedor ya confirmó anteriormente y el cliente vuelve a hablar (ej: "gracias", "le espero"), la venta ya se considera procesada/vieja y debes responder "esVenta": false para evitar duplicados. Solo devuelve true en el PRECISO MOMENTO en que el vendedor confirma.
- Ubicación: No la inventes. Si no hay dirección clara y no está en el mensaje, deja vacío o usa lo que diga el texto.

EJEMPLOS:

Contexto:
Cliente: Quiero 1 agua al 1201
Respuesta: {"esVenta": false, "cantidad": 1, "ubicacion": "1201"} (Falta confirmación)

Contexto:
Cliente: Quiero 1 agua al 1201
Vendedor: Ok voy
Respuesta: {"esVenta": true, "cantidad": 1, "ubicacion": "1201"} (CIERRE PERFECTO)

Contexto:
Cliente: Quiero 1 agua al 1201
Vendedor: Ok voy
Cliente: Gracias amable
Respuesta: {"esVenta": false, "cantidad": 1, "ubicacion": "1201"} (YA CERRADA, EL ÚLTIMO ES CLIENTE)

REGLAS DE SALIDA:
- Responde ÚNICAMENTE con un objeto JSON: { "esVenta": boolean, "cantidad": number, "ubicacion": string }
- No añadas texto extra.

Conversación actual:
` + transcript + `

Respuesta JSON:`
}

// parseVerdictResponse parses the provider's raw text against the contract.
// Anything that is not the expected single object is a failure; a partially
// valid response is never trusted.
func parseVerdictResponse(responseText string) (SaleVerdict, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	dec := json.NewDecoder(strings.NewReader(responseText))
	dec.DisallowUnknownFields()
	var resp verdictResponse
	if err := dec.Decode(&resp); err != nil {
		return SaleVerdict{}, fmt.Errorf("parsing verdict response: %w (response: %s)", err, responseText)
	}
	if resp.EsVenta == nil {
		return SaleVerdict{}, fmt.Errorf("verdict response missing esVenta field (response: %s)", responseText)
	}

	verdict := SaleVerdict{IsSale: *resp.EsVenta, Location: strings.TrimSpace(resp.Ubicacion)}
	if resp.Cantidad != nil {
		verdict.Quantity = int(*resp.Cantidad)
	}
	return verdict, nil
}

// --- Anthropic ---

type anthropicClassifier struct {
	apiKey string
	model  string
}

func (c *anthropicClassifier) Name() string { return "anthropic" }

func (c *anthropicClassifier) Classify(prompt string) (SaleVerdict, error) {
	client := anthropic.NewClient(option.WithAPIKey(c.apiKey))

	message, err := client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   1024,
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return SaleVerdict{}, fmt.Errorf("Anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return parseVerdictResponse(block.Text)
		}
	}
	return SaleVerdict{}, fmt.Errorf("no text content in Anthropic response")
}

// --- OpenAI-compatible (OpenAI, Groq) ---

type openAIClassifier struct {
	apiKey  string
	baseURL string
	model   string
}

type openAIRequest struct {
	Model          string               `json:"model"`
	Messages       []openAIMessage      `json:"messages"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *openAIClassifier) Name() string { return "openai" }

func (c *openAIClassifier) Classify(prompt string) (SaleVerdict, error) {
	reqBody := openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "user", Content: prompt},
		},
		Temperature:    0,
		ResponseFormat: openAIResponseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return SaleVerdict{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return SaleVerdict{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return SaleVerdict{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return SaleVerdict{}, fmt.Errorf("reading response: %w", err)
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return SaleVerdict{}, fmt.Errorf("parsing OpenAI response: %w", err)
	}
	if openAIResp.Error != nil {
		return SaleVerdict{}, fmt.Errorf("OpenAI API error: %s", openAIResp.Error.Message)
	}
	if len(openAIResp.Choices) == 0 {
		return SaleVerdict{}, fmt.Errorf("no choices in OpenAI response")
	}

	return parseVerdictResponse(openAIResp.Choices[0].Message.Content)
}

// --- Audio transcription (Whisper over the OpenAI-compatible endpoint) ---

type Transcriber struct {
	apiKey  string
	baseURL string
	model   string
}

func NewTranscriber(cfg Config) *Transcriber {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	return &Transcriber{apiKey: cfg.OpenAIAPIKey, baseURL: cfg.OpenAIBaseURL, model: cfg.WhisperModel}
}

// Transcribe sends one audio body to the transcription endpoint and returns
// the Spanish transcript text.
func (t *Transcriber) Transcribe(filename string, audio io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("copying audio body: %w", err)
	}
	_ = writer.WriteField("model", t.model)
	_ = writer.WriteField("language", "es")
	_ = writer.WriteField("response_format", "text")
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequest("POST", t.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return strings.TrimSpace(string(respBody)), nil
}
