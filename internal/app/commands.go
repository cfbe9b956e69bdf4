package app

import (
	"context"
	"fmt"
	"strings"

	"lessonbot/internal/adapters/telegram"
	"lessonbot/internal/transport"
	"lessonbot/pkg/logx"
)

// dispatch drains the adapter's update channel and routes commands,
// callbacks, and free-text homework input.
func (a *App) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-a.updates:
			a.handle(ctx, up)
		}
	}
}

func (a *App) handle(ctx context.Context, up transport.Update) {
	switch up.Kind {
	case transport.UpdateMessage:
		if up.Message == nil {
			return
		}
		text := strings.TrimSpace(up.Message.Text)
		if strings.HasPrefix(text, "/") {
			a.handleCommand(ctx, up.Message, text)
		} else if text != "" {
			a.handleFreeText(ctx, up.Message, text)
		}
	case transport.UpdateCallback:
		if up.Callback != nil {
			a.handleSubjectChosen(ctx, up.Callback)
		}
	}
}

func (a *App) handleCommand(ctx context.Context, m *transport.Message, text string) {
	cmd := strings.ToLower(strings.Fields(text)[0])
	// strip "@botname" suffix from group-style commands
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		a.cmdStart(ctx, m)
	case "/stop":
		a.cmdStop(ctx, m)
	case "/homework":
		a.cmdHomework(ctx, m)
	case "/listhw":
		a.cmdListHomework(ctx, m)
	case "/menu":
		a.reply(ctx, m.ChatID, "Панель керування:", telegram.MainMenu())
	default:
		a.log.Debug("unknown command", logx.String("cmd", cmd), logx.Int64("chat", m.ChatID))
	}
}

func (a *App) cmdStart(ctx context.Context, m *transport.Message) {
	greeting := fmt.Sprintf("Привіт! Я буду надсилати нагадування за %d хвилин до початку пар.",
		a.sched.LeadMinutes())
	a.reply(ctx, m.ChatID, greeting, telegram.MainMenu())

	tt := a.currentTimetable()
	if tt == nil || !tt.Validated() {
		a.log.Error("refusing to schedule: timetable invalid", logx.Int64("chat", m.ChatID))
		a.reply(ctx, m.ChatID, "Помилка в розкладі. Зверніться до адміністратора.", nil)
		return
	}

	n, err := a.sched.Subscribe(m.ChatID, tt)
	if err != nil {
		a.log.Error("subscribe failed", logx.Int64("chat", m.ChatID), logx.Err(err))
		a.reply(ctx, m.ChatID, "Не вдалося налаштувати нагадування. Спробуйте пізніше.", nil)
		return
	}
	a.reply(ctx, m.ChatID, "Розклад нагадувань налаштовано!", nil)
	a.log.Info("reminders configured", logx.Int64("chat", m.ChatID), logx.Int("triggers", n))
}

func (a *App) cmdStop(ctx context.Context, m *transport.Message) {
	n, err := a.sched.Unsubscribe(m.ChatID)
	if err != nil {
		a.log.Error("unsubscribe failed", logx.Int64("chat", m.ChatID), logx.Err(err))
		return
	}
	a.reply(ctx, m.ChatID, "Всі нагадування скасовано.", nil)
	a.log.Info("reminders cancelled", logx.Int64("chat", m.ChatID), logx.Int("triggers", n))
}

func (a *App) cmdHomework(ctx context.Context, m *transport.Message) {
	subjects := a.currentTimetable().Subjects()
	if len(subjects) == 0 {
		a.reply(ctx, m.ChatID, "Розклад порожній.", nil)
		return
	}
	a.reply(ctx, m.ChatID, "Оберіть предмет:", telegram.SubjectsKeyboard(subjects))
}

func (a *App) cmdListHomework(ctx context.Context, m *transport.Message) {
	notes := a.hw.All()
	if len(notes) == 0 {
		a.reply(ctx, m.ChatID, "ДЗ ще не додано.", nil)
		return
	}
	var b strings.Builder
	b.WriteString("Ваші ДЗ:")
	for _, n := range notes {
		b.WriteString("\n")
		b.WriteString(n.Subject)
		b.WriteString(": ")
		b.WriteString(n.Text)
	}
	a.reply(ctx, m.ChatID, b.String(), nil)
}

// handleSubjectChosen arms free-text homework capture for the chat.
func (a *App) handleSubjectChosen(ctx context.Context, cb *transport.Callback) {
	_ = a.adapter.AnswerCallback(ctx, cb.ID, "")

	subject := cb.Data
	known := false
	for _, s := range a.currentTimetable().Subjects() {
		if s == subject {
			known = true
			break
		}
	}
	if !known {
		a.log.Warn("callback for unknown subject", logx.String("subject", subject))
		return
	}

	a.pendingMu.Lock()
	a.pending[cb.ChatID] = subject
	a.pendingMu.Unlock()

	ref := transport.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if err := a.adapter.EditText(ctx, ref, "Введіть ДЗ для предмета: "+subject, nil); err != nil {
		a.log.Warn("edit failed", logx.Err(err))
	}
}

func (a *App) handleFreeText(ctx context.Context, m *transport.Message, text string) {
	a.pendingMu.Lock()
	subject, ok := a.pending[m.ChatID]
	if ok {
		delete(a.pending, m.ChatID)
	}
	a.pendingMu.Unlock()

	if !ok {
		a.reply(ctx, m.ChatID, "Спочатку оберіть предмет через /homework.", nil)
		return
	}

	a.hw.Set(subject, text)
	a.reply(ctx, m.ChatID, fmt.Sprintf("ДЗ для '%s' збережено: %s", subject, text), nil)
}

func (a *App) reply(ctx context.Context, chatID int64, text string, markup any) {
	var opt *transport.SendOptions
	if markup != nil {
		opt = &transport.SendOptions{ReplyMarkupAdapter: markup}
	}
	if _, err := a.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		a.log.Warn("reply failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}
