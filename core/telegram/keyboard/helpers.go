// Package keyboard builds inline keyboards whose buttons carry raw callback
// data, so presses arrive on the generic OnCallback endpoint.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is an inline button with its callback payload.
type Button struct {
	Text string
	Data string
}

func (b Button) inline() tele.InlineButton {
	return tele.InlineButton{Text: b.Text, Data: b.Data}
}

// Column places each button on its own row. No buttons yield an empty
// keyboard, which removes the keyboard when used in an edit.
func Column(buttons []Button) *tele.ReplyMarkup {
	return Grid(buttons, 1)
}

// Grid lays buttons out left to right with up to perRow buttons per row.
func Grid(buttons []Button, perRow int) *tele.ReplyMarkup {
	perRow = max(perRow, 1)
	rows := make([][]tele.InlineButton, 0, (len(buttons)+perRow-1)/perRow)
	for len(buttons) > 0 {
		n := min(perRow, len(buttons))
		row := make([]tele.InlineButton, n)
		for i, b := range buttons[:n] {
			row[i] = b.inline()
		}
		rows = append(rows, row)
		buttons = buttons[n:]
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}
