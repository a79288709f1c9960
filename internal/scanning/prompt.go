package scanning

import "fmt"

// VisionItemsPrompt asks a vision model for every line item on every receipt in the image
const VisionItemsPrompt = `You are a receipt parser. Look at this image and extract EVERY line item from EVERY receipt.

If there are MULTIPLE receipts in this image (side by side, stacked, or several pages), extract all items from all receipts.

FORMAT for each item: {"Date": "DD/MM/YYYY", "Item": "exact name", "Price": number, "Qty": number, "Total": number}
- Date: the date printed on that receipt, in DD/MM/YYYY.
- Item: the exact item name. Never "Receipt Total" or "Unknown".
- Price: unit price of a single item.
- Qty: quantity.
- Total: line total (Price x Qty). For tax lines use the tax amount as Total.

Always include:
- Sales Tax / GST as a separate line for each receipt.
- Items with no price, with Total: 0.
- Refunds, with a negative Total.

Return ONE flat JSON array with every line item. No markdown, no explanation.`

// TranscribePrompt asks a vision model for a verbatim transcription, used when OCR fails
const TranscribePrompt = `Extract EVERY line of text from this receipt image. Do not skip, summarize, or omit anything.
Include every item name, quantity, price, subtotal, tax, and total.
Return only the raw text exactly as it appears, preserving layout and line breaks.`

const textItemsPrompt = `You are a receipt parser. Extract EVERY line item from this receipt text.

If there are MULTIPLE receipts in the text (different merchants, dates, or sections), extract all items from all receipts.

FORMAT: {"Date": "DD/MM/YYYY", "Item": "exact name", "Price": number, "Qty": number, "Total": number}
- Date: from each receipt, DD/MM/YYYY.
- Item: exact name. Never "Receipt Total" or "Unknown".
- Price: unit price. Qty: quantity. Total: line total.
- Sales Tax / GST as a separate line with Qty 1.
- Items with no price: Total 0. Refunds: negative Total.

Receipt text:
---
%s
---

Return ONLY the JSON array.`

// TextItemsPrompt builds the structuring prompt for recovered receipt text
func TextItemsPrompt(text string) string {
	return fmt.Sprintf(textItemsPrompt, text)
}
