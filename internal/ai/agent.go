package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-pharma-pos/internal/database"
	"go-pharma-pos/internal/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// RunAgent answers an admin's natural-language question about the pharmacy
// using Gemini function calling over the catalog and transaction history.
func RunAgent(userMessage string, apiKey string) (string, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel("gemini-2.0-flash-001")

	today := time.Now().Format("2006-01-02")

	systemPrompt := fmt.Sprintf(`SYSTEM: Today is %s. You are the back-office assistant of a pharmacy point of sale.

	RULES:
	1. UPDATE: If a user asks to update a product price by NAME, do NOT ask them for the ID. Instead:
	   - Call 'check_inventory' to find the ID.
	   - Call 'update_product_price' using that ID.

	2. READ: If a user asks for PRICE, STOCK, VAT status or prescription requirements of a product:
	   - Call 'check_inventory' to get the full list, then read the JSON to answer.

	3. SALES: If the user asks for sales or revenue figures, use 'get_sales_report'.

	USER: %s`, today, userMessage)

	model.Tools = []*genai.Tool{
		{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        "check_inventory",
					Description: "Get the full pharmacy catalog. Use this to find ANY product details like ID, Name, Generic Name, Price, Stock, VAT exemption or prescription requirement.",
				},
				{
					Name:        "update_product_price",
					Description: "Update the unit price of a specific product using its ID",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"product_id": {Type: genai.TypeInteger, Description: "ID of the product"},
							"new_price":  {Type: genai.TypeNumber, Description: "New unit price"},
						},
						Required: []string{"product_id", "new_price"},
					},
				},
				{
					Name:        "get_sales_report",
					Description: "Get total sales revenue and transaction count for a date range.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"start_date": {Type: genai.TypeString, Description: "Start date (YYYY-MM-DD)"},
							"end_date":   {Type: genai.TypeString, Description: "End date (YYYY-MM-DD)"},
						},
						Required: []string{"start_date", "end_date"},
					},
				},
			},
		},
	}

	session := model.StartChat()

	resp, err := session.SendMessage(ctx, genai.Text(systemPrompt))
	if err != nil {
		return "", err
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if funcCall, ok := part.(genai.FunctionCall); ok {
			switch funcCall.Name {
			case "check_inventory":
				return executeCheckInventory(ctx, session)
			case "update_product_price":
				return executeUpdatePrice(ctx, session, funcCall), nil
			case "get_sales_report":
				return executeSalesReport(ctx, session, funcCall), nil
			}
		}
	}

	return printResponse(resp), nil
}

// --- TOOL IMPLEMENTATIONS ---

func executeCheckInventory(ctx context.Context, session *genai.ChatSession) (string, error) {
	var products []models.Product
	database.DB.Find(&products)

	type SimpleProduct struct {
		ID                   uint    `json:"id"`
		Name                 string  `json:"name"`
		GenericName          string  `json:"generic_name"`
		Stock                int     `json:"stock"`
		Price                float64 `json:"price"`
		VATExempt            bool    `json:"vat_exempt"`
		PrescriptionRequired bool    `json:"prescription_required"`
	}
	var simpleList []SimpleProduct
	for _, p := range products {
		price, _ := p.UnitPrice.Float64()
		simpleList = append(simpleList, SimpleProduct{
			ID:                   p.ID,
			Name:                 p.Name,
			GenericName:          p.GenericName,
			Stock:                p.StockQuantity,
			Price:                price,
			VATExempt:            p.VATExempt,
			PrescriptionRequired: p.PrescriptionRequired,
		})
	}

	jsonBytes, _ := json.Marshal(simpleList)

	toolResp := genai.FunctionResponse{
		Name:     "check_inventory",
		Response: map[string]interface{}{"inventory": string(jsonBytes)},
	}

	finalResp, err := session.SendMessage(ctx, toolResp)
	if err != nil {
		return "", err
	}

	return handleRecursiveToolCalls(ctx, session, finalResp), nil
}

// handleRecursiveToolCalls lets the model chain a lookup into an update,
// e.g. "raise the price of Biogesic" -> check_inventory -> update.
func handleRecursiveToolCalls(ctx context.Context, session *genai.ChatSession, resp *genai.GenerateContentResponse) string {
	for _, part := range resp.Candidates[0].Content.Parts {
		if funcCall, ok := part.(genai.FunctionCall); ok {
			if funcCall.Name == "update_product_price" {
				return executeUpdatePrice(ctx, session, funcCall)
			}
		}
	}
	return printResponse(resp)
}

func executeUpdatePrice(ctx context.Context, session *genai.ChatSession, funcCall genai.FunctionCall) string {
	args := funcCall.Args
	productID := int(args["product_id"].(float64))
	newPrice := args["new_price"].(float64)

	result := database.DB.Model(&models.Product{}).Where("id = ?", productID).Update("unit_price", newPrice)

	msg := "Success"
	if result.RowsAffected == 0 {
		msg = "Product ID not found"
	}

	finalResp, _ := session.SendMessage(ctx, genai.FunctionResponse{
		Name:     "update_product_price",
		Response: map[string]interface{}{"status": msg, "new_price": newPrice},
	})
	return printResponse(finalResp)
}

func executeSalesReport(ctx context.Context, session *genai.ChatSession, funcCall genai.FunctionCall) string {
	args := funcCall.Args
	startStr := args["start_date"].(string)
	endStr := args["end_date"].(string)

	start, err1 := time.Parse("2006-01-02", startStr)
	end, err2 := time.Parse("2006-01-02", endStr)

	if err1 != nil || err2 != nil {
		return "Error: Dates must be in YYYY-MM-DD format."
	}
	end = end.Add(23*time.Hour + 59*time.Minute)

	report, err := database.GetSalesReport(start, end)
	if err != nil {
		return "Error calculating sales."
	}

	finalResp, _ := session.SendMessage(ctx, genai.FunctionResponse{
		Name: "get_sales_report",
		Response: map[string]interface{}{
			"revenue":           report.TotalRevenue,
			"transaction_count": report.TotalCount,
		},
	})
	return printResponse(finalResp)
}

func printResponse(resp *genai.GenerateContentResponse) string {
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			return string(txt)
		}
	}
	return "I completed the action."
}
