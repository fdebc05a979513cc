package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is one callback button: Unique picks the callback endpoint and
// Data is passed to it.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

func (b InlineBtn) inline() tele.InlineButton {
	return tele.InlineButton{Text: b.Text, Unique: b.Unique, Data: b.Data}
}

// InlineButtonsRows lays the rows out as an inline keyboard. Empty rows are
// dropped and nil is returned when no button is left.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	var keyboard [][]tele.InlineButton
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, b.inline())
		}
		keyboard = append(keyboard, line)
	}
	if keyboard == nil {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: keyboard}
}
