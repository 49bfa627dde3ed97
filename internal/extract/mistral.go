// Package extract asks the Mistral chat API to pull structured invoice
// fields out of raw PDF text.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/Miglio04/OREKA-BACKEND/internal/domain"
)

const (
	apiURL    = "https://api.mistral.ai/v1/chat/completions"
	model     = "mistral-large-latest"
	maxTries  = 4
	promptFmt = `Interprete the following text extracted from a pdf invoice and return a json object with the following structure containing all the informations inside the text i provided you:
{
    "invoice_number": "",
    "date": "",
    "items": [
        {
            "item": "",
            "unit_price": "",
            "quantity": "",
            "total": ""
        }
    ],
    "subtotal": "",
    "tax_percent": "",
    "amount_due": ""
}.
The content fields should contain the informations required in the json with maximum accuracy. Don't include any other text outside of the json object exactly as I described it in your response.
The text is the following: %s`
)

// Client extracts structured invoice fields from raw invoice text.
type Client interface {
	ExtractInvoice(ctx context.Context, text string) (*domain.InvoiceExtraction, error)
}

type mistralClient struct {
	httpClient *resty.Client
}

// NewClient creates a configured Mistral chat client.
func NewClient(apiKey string) Client {
	client := resty.New().
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("content-type", "application/json").
		SetTimeout(30 * time.Second)

	return &mistralClient{httpClient: client}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *mistralClient) ExtractInvoice(ctx context.Context, text string) (*domain.InvoiceExtraction, error) {
	content, err := c.complete(ctx, fmt.Sprintf(promptFmt, text))
	if err != nil {
		return nil, err
	}
	return parseExtraction(content)
}

// complete calls the chat API, retrying with linear backoff when the model
// reports a capacity problem.
func (c *mistralClient) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	var lastErr error
	for attempt := 0; attempt < maxTries; attempt++ {
		var respBody chatResponse
		resp, err := c.httpClient.R().
			SetContext(ctx).
			SetBody(reqBody).
			SetResult(&respBody).
			Post(apiURL)
		if err != nil {
			return "", fmt.Errorf("mistral api call: %w", err)
		}
		if resp.IsError() {
			lastErr = fmt.Errorf("mistral api error: %s", resp.String())
			if !strings.Contains(strings.ToLower(resp.String()), "capacity") {
				return "", lastErr
			}
			select {
			case <-time.After(time.Duration(2*(attempt+1)) * time.Second):
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if len(respBody.Choices) == 0 {
			return "", errors.New("empty response from mistral")
		}
		return respBody.Choices[0].Message.Content, nil
	}
	return "", lastErr
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

type rawExtraction struct {
	InvoiceNumber string `json:"invoice_number"`
	Date          string `json:"date"`
	Items         []struct {
		Item      string `json:"item"`
		UnitPrice string `json:"unit_price"`
		Quantity  string `json:"quantity"`
		Total     string `json:"total"`
	} `json:"items"`
	Subtotal   string `json:"subtotal"`
	TaxPercent string `json:"tax_percent"`
	AmountDue  string `json:"amount_due"`
}

// parseExtraction pulls the JSON object out of the model reply, which may be
// wrapped in prose or a markdown code fence, and converts amount strings
// into exact decimals.
func parseExtraction(content string) (*domain.InvoiceExtraction, error) {
	match := jsonObjectPattern.FindString(content)
	if match == "" {
		return nil, fmt.Errorf("no json object in model response: %q", content)
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal model response: %w", err)
	}

	info := &domain.InvoiceExtraction{
		InvoiceNumber: raw.InvoiceNumber,
		Date:          raw.Date,
		Subtotal:      parseNullAmount(raw.Subtotal),
		TaxPercent:    parseNullAmount(raw.TaxPercent),
		AmountDue:     parseNullAmount(raw.AmountDue),
		Source:        domain.ExtractionSourceMistral,
	}
	for _, item := range raw.Items {
		qty, _ := strconv.Atoi(strings.TrimSpace(item.Quantity))
		extracted := domain.InvoiceExtractionItem{Name: item.Item, Quantity: qty}
		if unit := parseNullAmount(item.UnitPrice); unit.Valid {
			extracted.UnitPrice = unit.Decimal
		}
		if total := parseNullAmount(item.Total); total.Valid {
			extracted.Total = total.Decimal
		}
		info.Items = append(info.Items, extracted)
	}
	return info, nil
}

// parseNullAmount tolerates currency symbols, percent signs and empty
// strings in model output.
func parseNullAmount(value string) decimal.NullDecimal {
	cleaned := strings.NewReplacer("€", "", "$", "", "£", "", "%", "", " ", "", ",", "").Replace(value)
	if cleaned == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
