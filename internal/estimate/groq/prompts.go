package groq

import (
	"fmt"
	"strings"
)

func interpretPrompt(text string) string {
	return fmt.Sprintf(`Identify every food in this meal description: "%s"

For each food give its name as written by the user, its English name, and the
amount in grams. Use the stated amount when there is one; when a total is given
for a dish, split it between its ingredients. Otherwise estimate a typical
portion.

Reply ONLY with this JSON, no extra text:
{"items": [{"name": "food", "name_en": "food in English", "grams": number}]}`, text)
}

func nutrientsPrompt(names []string) string {
	return fmt.Sprintf(`Give the nutrition values per 100g for these foods: %s

Use official food composition tables (USDA, BEDCA). Typical reference values:
- Egg: 155 kcal, 1.1g carbs, 13g protein, 11g fat
- Cooked rice: 130 kcal, 28g carbs, 2.7g protein, 0.3g fat
- Chicken: 165 kcal, 0g carbs, 31g protein, 3.6g fat
- Bread: 265 kcal, 49g carbs, 9g protein, 3.2g fat
- Olive oil: 884 kcal, 0g carbs, 0g protein, 100g fat

Keep the foods in the same order and use the same names.
Reply ONLY with this JSON, no extra text:
{"foods": [{"name": "food", "kcal": number, "carbs": number, "protein": number, "fat": number}]}`,
		strings.Join(names, ", "))
}

const labelPrompt = `Read the nutrition facts panel in this image.
Report the values for the 100g (or 100ml) column when present, otherwise the
column that is shown, and say which reference amount it uses.

Reply ONLY with this JSON, no extra text:
{"product": "product name or empty", "per": "100g", "kcal": number, "carbs": number, "protein": number, "fat": number}`
