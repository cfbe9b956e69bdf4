package telegram

import (
	tele "gopkg.in/telebot.v4"
)

// MainMenu is the persistent reply keyboard offered on /start and /menu.
func MainMenu() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{
		ResizeKeyboard: true,
		ReplyKeyboard: [][]tele.ReplyButton{
			{{Text: "/start"}, {Text: "/stop"}},
			{{Text: "/homework"}, {Text: "/listhw"}},
			{{Text: "/menu"}},
		},
	}
}

// SubjectsKeyboard builds an inline keyboard with one button per subject.
// The callback data carries the subject name verbatim.
func SubjectsKeyboard(subjects []string) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(subjects))
	for _, s := range subjects {
		rows = append(rows, []tele.InlineButton{{Text: s, Data: s}})
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}
