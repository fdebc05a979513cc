package keyboard

import "testing"

func TestInlineButtonsRows(t *testing.T) {
	markup := InlineButtonsRows(
		[]InlineBtn{{Text: "A", Unique: "answer", Data: "1:0"}, {Text: "B", Unique: "answer", Data: "1:1"}},
		nil,
		[]InlineBtn{{Text: "Hint", Unique: "hint", Data: "1"}},
	)
	if markup == nil || len(markup.InlineKeyboard) != 2 {
		t.Fatalf("unexpected keyboard: %+v", markup)
	}
	btn := markup.InlineKeyboard[0][1]
	if btn.Text != "B" || btn.Unique != "answer" || btn.Data != "1:1" {
		t.Fatalf("unexpected button: %+v", btn)
	}
	if InlineButtonsRows(nil, []InlineBtn{}) != nil {
		t.Fatal("empty rows must produce no markup")
	}
}

