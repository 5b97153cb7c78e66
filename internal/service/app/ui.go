package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"phantom_link/internal/model"
	"phantom_link/internal/utils/log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// UI is the terminal inbox browser: the inbox on the left, the selected
// message on the right, a compose form and a status line below.
type UI struct {
	app    *tview.Application
	inbox  *tview.List
	detail *tview.TextView
	status *tview.TextView
	form   *tview.Form

	m     *Messenger
	owner common.Address
	msgs  []*model.StoredMessage
}

func NewUI(m *Messenger) *UI {
	return &UI{
		app:   tview.NewApplication(),
		m:     m,
		owner: m.Address(),
	}
}

// Run blocks until the user quits. events, when non-nil, triggers an inbox
// refresh for every new message.
func (c *UI) Run(ctx context.Context, events <-chan *model.InboxEvent) error {
	c.inbox = tview.NewList().ShowSecondaryText(true)
	c.inbox.SetBorder(true).SetTitle(fmt.Sprintf(" Inbox of %s ", c.owner.Hex()))
	c.inbox.SetSelectedFunc(func(i int, _, _ string, _ rune) {
		if i < len(c.msgs) {
			go c.reveal(ctx, c.msgs[i])
		}
	})

	c.detail = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	c.detail.SetBorder(true).SetTitle(" Message ")

	c.status = tview.NewTextView().SetDynamicColors(true)

	var to, text string
	c.form = tview.NewForm().
		AddInputField("To", "", 44, nil, func(s string) { to = s }).
		AddInputField("Message", "", 0, nil, func(s string) { text = s }).
		AddButton("Send", func() {
			go c.send(ctx, to, text)
		})
	c.form.SetBorder(true).SetTitle(" New Message ")

	c.m.OnTransition(func(t model.Transition) {
		if t.Status == "" {
			return
		}
		c.app.QueueUpdateDraw(func() {
			c.setStatus(t)
		})
	})
	defer c.m.OnTransition(nil)

	body := tview.NewFlex().
		AddItem(c.inbox, 0, 1, true).
		AddItem(c.detail, 0, 2, false)
	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(c.form, 7, 0, false).
		AddItem(c.status, 1, 0, false)

	c.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyTab:
			if c.inbox.HasFocus() {
				c.app.SetFocus(c.form)
			} else {
				c.app.SetFocus(c.inbox)
			}
			return nil
		case tcell.KeyCtrlR:
			go c.refresh(ctx)
			return nil
		}
		return ev
	})

	go c.refresh(ctx)
	if events != nil {
		go c.listenOnEvents(ctx, events)
	}

	return c.app.SetRoot(layout, true).SetFocus(c.inbox).Run()
}

func (c *UI) Stop() {
	c.app.Stop()
}

// colored wraps text in a colour tag. Text is escaped so brackets in
// messages and errors are shown rather than parsed as tags.
func colored(color, text string) string {
	return fmt.Sprintf("[%s]%s[-]", color, tview.Escape(text))
}

func (c *UI) setStatus(t model.Transition) {
	color := "yellow"
	switch {
	case t.Err != nil:
		color = "red"
	case !t.IsReveal && t.Send == model.SendConfirmed:
		color = "green"
	}
	c.status.SetText(colored(color, t.Status))
}

func (c *UI) listenOnEvents(ctx context.Context, events <-chan *model.InboxEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			log.Debug("new message", zap.Uint64("index", ev.Index), zap.String("from", ev.Sender.Hex()))
			c.refresh(ctx)
		}
	}
}

func (c *UI) refresh(ctx context.Context) {
	msgs, err := c.m.Inbox(ctx, c.owner)
	c.app.QueueUpdateDraw(func() {
		if err != nil {
			c.status.SetText(colored("red", "Failed to load inbox: "+err.Error()))
			return
		}
		c.msgs = msgs
		c.inbox.Clear()
		for _, msg := range msgs {
			c.inbox.AddItem(
				fmt.Sprintf("#%d from %s", msg.Index, msg.Sender.Hex()),
				time.Unix(int64(msg.Timestamp), 0).Format(time.DateTime),
				0, nil)
		}
	})
}

func (c *UI) reveal(ctx context.Context, msg *model.StoredMessage) {
	revealed, err := c.m.Reveal(ctx, msg)
	if errors.Is(err, ErrRevealInProgress) {
		return
	}
	c.app.QueueUpdateDraw(func() {
		c.detail.Clear()
		fmt.Fprintf(c.detail, "[yellow]From:[-] %s\n", msg.Sender.Hex())
		fmt.Fprintf(c.detail, "[yellow]Sent:[-] %s\n", time.Unix(int64(msg.Timestamp), 0).Format(time.RFC1123))
		fmt.Fprintf(c.detail, "[yellow]Ciphertext:[-] %s\n\n", msg.Ciphertext)
		if err != nil {
			fmt.Fprintln(c.detail, colored("red", err.Error()))
			return
		}
		fmt.Fprintf(c.detail, "[yellow]Key:[-] %s\n", revealed.EphemeralAddress.Hex())
		fmt.Fprintln(c.detail, colored("green", revealed.Plaintext))
		c.detail.ScrollToBeginning()
	})
}

func (c *UI) send(ctx context.Context, to, text string) {
	res, err := c.m.Send(ctx, to, text)
	if err != nil {
		return
	}
	c.app.QueueUpdateDraw(func() {
		if item := c.form.GetFormItemByLabel("Message"); item != nil {
			if field, ok := item.(*tview.InputField); ok {
				field.SetText("")
			}
		}
		c.status.SetText(fmt.Sprintf("[green]%s Key: %s[-]", StatusDelivered, res.EphemeralAddress.Hex()))
	})
	if res.Recipient == c.owner {
		c.refresh(ctx)
	}
}
