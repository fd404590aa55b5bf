package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxhall/callagent/internal/dialogue"
	"github.com/voxhall/callagent/internal/env"
)

// newToolRegistry wires the built-in tool set. The demo retail tools answer
// from fixed data; transferCall hands the live call off through the
// provider's REST API when credentials are configured.
func newToolRegistry(cfg config) *dialogue.Registry {
	reg := dialogue.NewRegistry()

	reg.Register(dialogue.Tool{
		Name:        "checkInventory",
		Description: "Check the inventory of airpods, airpods pro or airpods max.",
		Say:         "Let me check our inventory right now.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"model": map[string]any{
					"type":        "string",
					"enum":        []string{"airpods", "airpods pro", "airpods max"},
					"description": "The model of airpods, either the airpods, airpods pro or airpods max",
				},
			},
			"required": []string{"model"},
		},
		Fn: checkInventory,
	})

	reg.Register(dialogue.Tool{
		Name:        "checkPrice",
		Description: "Check the price of a given model of airpods, airpods pro or airpods max.",
		Say:         "Let me check the price, one moment.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"model": map[string]any{
					"type":        "string",
					"enum":        []string{"airpods", "airpods pro", "airpods max"},
					"description": "The model of airpods, either the airpods, airpods pro or airpods max",
				},
			},
			"required": []string{"model"},
		},
		Fn: checkPrice,
	})

	reg.Register(dialogue.Tool{
		Name:        "placeOrder",
		Description: "Places an order for a set of airpods.",
		Say:         "All right, I'm just going to ring that up in our system.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"model": map[string]any{
					"type":        "string",
					"enum":        []string{"airpods", "airpods pro", "airpods max"},
					"description": "The model of airpods",
				},
				"quantity": map[string]any{
					"type":        "integer",
					"description": "The number of airpods they want to order",
				},
			},
			"required": []string{"model", "quantity"},
		},
		Fn: placeOrder,
	})

	reg.Register(dialogue.Tool{
		Name:        "transferCall",
		Description: "Transfers the customer to a live agent in case they request help from a real person.",
		Say:         "One moment while I transfer your call.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"callSid": map[string]any{
					"type":        "string",
					"description": "The unique identifier for the active phone call.",
				},
			},
			"required": []string{"callSid"},
		},
		Fn: transferCall(cfg.transferNumber),
	})

	return reg
}

var inventory = map[string]int{
	"airpods":     10,
	"airpods pro": 5,
	"airpods max": 0,
}

var prices = map[string]int{
	"airpods":     149,
	"airpods pro": 249,
	"airpods max": 549,
}

func checkInventory(_ context.Context, args map[string]any) (string, error) {
	model := strings.ToLower(fmt.Sprint(args["model"]))
	stock, ok := inventory[model]
	if !ok {
		return "", fmt.Errorf("unknown model %q", model)
	}
	return jsonResult(map[string]any{"stock": stock}), nil
}

func checkPrice(_ context.Context, args map[string]any) (string, error) {
	model := strings.ToLower(fmt.Sprint(args["model"]))
	price, ok := prices[model]
	if !ok {
		return "", fmt.Errorf("unknown model %q", model)
	}
	return jsonResult(map[string]any{"price": price}), nil
}

func placeOrder(_ context.Context, args map[string]any) (string, error) {
	model := strings.ToLower(fmt.Sprint(args["model"]))
	qty, _ := args["quantity"].(float64)
	price, ok := prices[model]
	if !ok {
		return "", fmt.Errorf("unknown model %q", model)
	}
	return jsonResult(map[string]any{
		"orderNumber": time.Now().Unix() % 100000,
		"price":       float64(price) * qty,
	}), nil
}

// transferCall redirects the live call to a human agent by updating the call
// resource at the telephony provider.
func transferCall(transferNumber string) dialogue.ToolFunc {
	accountSID := env.Str("TWILIO_ACCOUNT_SID", "")
	authToken := env.Str("TWILIO_AUTH_TOKEN", "")
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, args map[string]any) (string, error) {
		callSID := fmt.Sprint(args["callSid"])
		if transferNumber == "" || accountSID == "" {
			return "The caller was not transferred because no agent line is configured, tell them to call back during business hours.", nil
		}

		form := url.Values{}
		form.Set("Twiml", fmt.Sprintf(`<Response><Dial>%s</Dial></Response>`, transferNumber))
		endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Calls/%s.json", accountSID, callSID)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return "", fmt.Errorf("transfer request: %w", err)
		}
		req.SetBasicAuth(accountSID, authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("transfer call: %w", err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("transfer call: provider returned %s", resp.Status)
		}
		return "The call was transferred successfully, say goodbye to the customer.", nil
	}
}

func jsonResult(v map[string]any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
