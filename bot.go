package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const helpText = "🤖 *Comandos disponibles*\n" +
	"`!rv <numero> [cantidad]` — registrar una venta manual\n" +
	"`!resumen` — resumen financiero y top clientes\n" +
	"`!reporte` — enviar el reporte de seguimiento ahora\n" +
	"`!excel` — exportar las ventas del mes a CSV\n" +
	"`!borrarventa [numero]` — borrar la última venta (opcionalmente de un cliente)\n" +
	"`!scan` — buscar ventas pasadas en esta conversación\n" +
	"`!scanall` — buscar ventas pasadas en todos los chats recientes\n" +
	"`!chatid` — mostrar el ID de esta conversación\n" +
	"`!comandos` — esta ayuda"

// Bot glues the Slack event stream to the detection pipeline and the admin
// command surface.
type Bot struct {
	cfg         Config
	db          *sql.DB
	api         *slack.Client
	chat        *slackChat
	pipeline    *Pipeline
	transcriber *Transcriber
	botUserID   string
}

func NewBot(cfg Config, db *sql.DB, api *slack.Client) *Bot {
	chat := &slackChat{api: api, sellerID: cfg.SellerUserID}
	return &Bot{
		cfg:  cfg,
		db:   db,
		api:  api,
		chat: chat,
		pipeline: &Pipeline{
			DB:         db,
			Detector:   NewSaleDetector(cfg),
			Cache:      NewTranscriptionCache(transcriptionCacheCapacity),
			WindowSize: cfg.WindowSize,
			Loc:        cfg.Location,
		},
		transcriber: NewTranscriber(cfg),
	}
}

func (b *Bot) Start() error {
	if auth, err := b.api.AuthTest(); err == nil {
		b.botUserID = auth.UserID
	} else {
		log.Printf("auth.test error: %v", err)
	}

	client := socketmode.New(b.api)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				client.Ack(*evt.Request)
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				go b.handleEventsAPI(eventsAPIEvent)
			}
		}
	}()

	log.Println("Bot connected via Socket Mode")
	return client.Run()
}

func (b *Bot) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		b.handleMessage(ev)
	}
}

func (b *Bot) handleMessage(ev *slackevents.MessageEvent) {
	if ev.BotID != "" || ev.SubType == "bot_message" {
		return
	}
	text := strings.TrimSpace(ev.Text)

	private := ev.ChannelType == "im" || ev.ChannelType == "mpim"

	// Admin commands: operator-authored, private conversation only.
	if ev.User == b.cfg.SellerUserID && strings.HasPrefix(text, "!") && private {
		b.handleCommand(ev, text)
		return
	}

	// Group channels only get keyword alerts, never automatic detection.
	if ev.ChannelType == "channel" || ev.ChannelType == "group" {
		b.handleGroupMessage(ev, text)
		return
	}
	if !private {
		return
	}

	speaker := SpeakerCustomer
	if ev.User == b.cfg.SellerUserID {
		speaker = SpeakerSeller
	}
	trigger := ChatMessage{
		ID:        ev.TimeStamp,
		Speaker:   speaker,
		Text:      text,
		Timestamp: parseSlackTimestamp(ev.TimeStamp),
	}

	// Fresh audio: transcribe, cache under the message ID so later windows
	// see the text, and evaluate the transcript instead of the empty body.
	if transcript := b.transcribeFiles(ev); transcript != "" {
		b.pipeline.Cache.Put(ev.TimeStamp, transcript)
		trigger.Text = transcript
	}
	if trigger.Text == "" {
		return
	}

	contact, err := b.conversationContact(ev)
	if err != nil {
		log.Printf("resolving contact channel=%s: %v", ev.Channel, err)
		return
	}

	result := b.pipeline.EvaluateMessage(b.chat, ev.Channel, contact, trigger, false)
	switch result.Outcome {
	case outcomeSale:
		b.notifyAlertChannel(fmt.Sprintf("🤖 Venta detectada y registrada para *%s* (id %d)", contact.Name, result.SaleID))
	case outcomeSkip:
		if result.Stage != stageTrigger {
			log.Printf("evaluation skipped chat=%s stage=%s reason=%s", ev.Channel, result.Stage, result.Reason)
		}
	case outcomeError:
		log.Printf("evaluation error chat=%s stage=%s: %v", ev.Channel, result.Stage, result.Err)
	}
}

func (b *Bot) handleGroupMessage(ev *slackevents.MessageEvent, text string) {
	if ev.Channel == b.cfg.AlertChannelID {
		return
	}
	if !IsPotentialSale(strings.ToLower(text)) {
		return
	}
	contact, err := b.userContact(ev.User)
	if err != nil {
		log.Printf("resolving group contact user=%s: %v", ev.User, err)
		return
	}
	alert := fmt.Sprintf("🚨 *ALERTA DE PEDIDO* 🚨\n\n👤 *Persona:* %s\n💬 *Mensaje:* %s\n🔗 *Chat:* <#%s>",
		contact.Name, text, ev.Channel)
	b.notifyAlertChannel(alert)
}

// --- Admin commands ---

func (b *Bot) handleCommand(ev *slackevents.MessageEvent, text string) {
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, registerCommandPrefix):
		b.cmdRegisterSale(ev, text)
	case lower == "!resumen":
		b.cmdFinancialSummary(ev)
	case lower == "!reporte":
		b.cmdReportNow(ev)
	case lower == "!excel":
		b.cmdExport(ev)
	case strings.HasPrefix(lower, "!borrarventa"):
		b.cmdDeleteLast(ev, text)
	case lower == "!scan":
		b.cmdScan(ev)
	case lower == "!scanall":
		b.cmdScanAll(ev)
	case lower == "!chatid":
		b.reply(ev, fmt.Sprintf("🆔 ID de esta conversación: `%s`", ev.Channel))
	case lower == "!comandos" || lower == "!ayuda":
		b.reply(ev, helpText)
	}
}

func (b *Bot) cmdRegisterSale(ev *slackevents.MessageEvent, text string) {
	cmd, ok := ParseRegisterCommand(text)
	if !ok {
		b.reply(ev, "❌ Formato inválido. Uso: `!rv <numero> [cantidad]` (número de al menos 8 dígitos, cantidad 1-20)")
		return
	}

	today := BusinessDate(time.Now(), b.cfg.Location)
	exists, err := SaleExists(b.db, cmd.Number, today)
	if err != nil {
		b.replyStoreError(ev, err)
		return
	}
	if exists {
		b.reply(ev, fmt.Sprintf("⚠️ Ya existe una venta registrada hoy para %s", cmd.Number))
		return
	}

	address, err := LastAddress(b.db, cmd.Number)
	if err != nil {
		b.replyStoreError(ev, err)
		return
	}

	id, err := RegisterSale(b.db, b.cfg.Location, cmd.Number, cmd.Number, cmd.Quantity, cmd.Quantity*unitPriceCLP, address, "")
	if err != nil {
		b.replyStoreError(ev, err)
		return
	}
	b.reply(ev, fmt.Sprintf("✅ Venta registrada (id %d): %s x%d, $%d CLP", id, cmd.Number, cmd.Quantity, cmd.Quantity*unitPriceCLP))
}

func (b *Bot) cmdFinancialSummary(ev *slackevents.MessageEvent) {
	summary, err := FinancialSummary(b.db, b.cfg.Location)
	if err != nil {
		b.replyStoreError(ev, err)
		return
	}
	top, err := TopCustomers(b.db, b.cfg.Location, topCustomerCount)
	if err != nil {
		b.replyStoreError(ev, err)
		return
	}
	b.reply(ev, FormatFinancialSummary(summary, top))
}

func (b *Bot) cmdReportNow(ev *slackevents.MessageEvent) {
	if err := SendFollowUpReports(b.cfg, b.db, b.chat); err != nil {
		b.replyStoreError(ev, err)
		return
	}
	b.reply(ev, "✅ Reporte de seguimiento enviado al canal de alertas")
}

func (b *Bot) cmdExport(ev *slackevents.MessageEvent) {
	path, err := WriteMonthlyExport(b.db, b.cfg.Location, b.cfg.ExportOutputDir)
	if err != nil {
		b.replyStoreError(ev, err)
		return
	}
	b.reply(ev, fmt.Sprintf("📊 Exportación lista: `%s`", path))
}

func (b *Bot) cmdDeleteLast(ev *slackevents.MessageEvent, text string) {
	fields := strings.Fields(text)
	var removed int64
	var err error
	if len(fields) > 1 {
		number := nonDigitRegex.ReplaceAllString(fields[1], "")
		removed, err = DeleteLastSaleFor(b.db, number)
	} else {
		removed, err = DeleteLastSale(b.db)
	}
	if err != nil {
		b.replyStoreError(ev, err)
		return
	}
	if removed == 0 {
		b.reply(ev, "⚠️ No hay ventas para borrar")
		return
	}
	b.reply(ev, "🗑️ Última venta borrada")
}

func (b *Bot) cmdScan(ev *slackevents.MessageEvent) {
	b.reply(ev, "⏳ Escaneando mensajes recientes para buscar ventas pasadas...")
	contact, err := b.conversationContact(ev)
	if err != nil {
		b.reply(ev, fmt.Sprintf("❌ No pude identificar al cliente de este chat: %v", err))
		return
	}
	found, err := b.pipeline.scanChat(b.chat, ChatSummary{ID: ev.Channel, Contact: contact}, b.cfg.ScanFetchLimit)
	if err != nil {
		b.reply(ev, fmt.Sprintf("❌ Error durante el escaneo: %v", err))
		return
	}
	if found {
		b.reply(ev, "✅ Venta histórica detectada y guardada.")
	} else {
		b.reply(ev, "No se detectaron ventas claras en los últimos mensajes.")
	}
}

func (b *Bot) cmdScanAll(ev *slackevents.MessageEvent) {
	b.reply(ev, "⏳ Escaneando todos los chats con actividad reciente. Esto puede tardar varios minutos...")

	chats, err := b.recentDirectChats(followUpMaxDays)
	if err != nil {
		b.reply(ev, fmt.Sprintf("❌ Error listando conversaciones: %v", err))
		return
	}
	result := b.pipeline.ScanChats(b.chat, chats, b.cfg.ScanFetchLimit)
	b.reply(ev, fmt.Sprintf("✅ Escaneo completo: %d chats analizados, %d ventas encontradas", result.Analyzed, result.Found))
}

// recentDirectChats lists the bot's direct conversations with activity in
// the last maxAgeDays days, the pre-filter the scanner expects.
func (b *Bot) recentDirectChats(maxAgeDays int) ([]ChatSummary, error) {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	var out []ChatSummary
	cursor := ""
	for {
		channels, next, err := b.api.GetConversations(&slack.GetConversationsParameters{
			Types:  []string{"im"},
			Limit:  200,
			Cursor: cursor,
		})
		if err != nil {
			return nil, err
		}
		for _, ch := range channels {
			if ch.User == "" || ch.User == b.cfg.SellerUserID {
				continue
			}
			msgs, err := b.chat.FetchMessages(ch.ID, 1)
			if err != nil || len(msgs) == 0 {
				continue
			}
			if msgs[len(msgs)-1].Timestamp.Before(cutoff) {
				continue
			}
			contact, err := b.userContact(ch.User)
			if err != nil {
				log.Printf("resolving contact user=%s: %v", ch.User, err)
				continue
			}
			out = append(out, ChatSummary{ID: ch.ID, Contact: contact})
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return out, nil
}

// --- Contact resolution ---

// conversationContact resolves the customer in a private conversation: the
// author when it is not the operator, the direct counterpart for a DM, or
// the first non-operator member otherwise.
func (b *Bot) conversationContact(ev *slackevents.MessageEvent) (Customer, error) {
	if ev.User != "" && ev.User != b.cfg.SellerUserID && ev.User != b.botUserID {
		return b.userContact(ev.User)
	}

	info, err := b.api.GetConversationInfo(&slack.GetConversationInfoInput{ChannelID: ev.Channel})
	if err != nil {
		return Customer{}, err
	}
	if info.User != "" {
		if info.User == b.cfg.SellerUserID {
			return Customer{}, fmt.Errorf("conversation %s is the operator's own chat", ev.Channel)
		}
		return b.userContact(info.User)
	}

	members, _, err := b.api.GetUsersInConversation(&slack.GetUsersInConversationParameters{ChannelID: ev.Channel})
	if err != nil {
		return Customer{}, err
	}
	for _, m := range members {
		if m != b.cfg.SellerUserID && m != b.botUserID {
			return b.userContact(m)
		}
	}
	return Customer{}, fmt.Errorf("conversation %s has no customer member", ev.Channel)
}

func (b *Bot) userContact(userID string) (Customer, error) {
	user, err := b.api.GetUserInfo(userID)
	if err != nil {
		return Customer{}, err
	}
	name := user.RealName
	if name == "" {
		name = user.Name
	}
	number := nonDigitRegex.ReplaceAllString(user.Profile.Phone, "")
	if number == "" {
		number = userID
	}
	return Customer{Name: name, Number: number}, nil
}

// --- Audio ---

// transcribeFiles downloads and transcribes any audio attachment of the
// event. The event payload itself carries no attachment metadata, so the
// message is re-fetched from the conversation history by its timestamp.
// Failures degrade to an empty transcript; the pipeline continues with
// whatever body the message has.
func (b *Bot) transcribeFiles(ev *slackevents.MessageEvent) string {
	if b.transcriber == nil {
		return ""
	}
	resp, err := b.api.GetConversationHistory(&slack.GetConversationHistoryParameters{
		ChannelID: ev.Channel,
		Latest:    ev.TimeStamp,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		log.Printf("fetching message attachments channel=%s ts=%s: %v", ev.Channel, ev.TimeStamp, err)
		return ""
	}
	for _, m := range resp.Messages {
		if m.Timestamp != ev.TimeStamp {
			continue
		}
		for _, f := range audioAttachments(m.Files) {
			var buf bytes.Buffer
			if err := b.api.GetFile(f.URLPrivateDownload, &buf); err != nil {
				log.Printf("audio download error file=%s: %v", f.ID, err)
				continue
			}
			text, err := b.transcriber.Transcribe(f.Name, &buf)
			if err != nil {
				log.Printf("transcription error file=%s: %v", f.ID, err)
				continue
			}
			log.Printf("audio transcribed file=%s chars=%d", f.ID, len(text))
			return text
		}
	}
	return ""
}

// audioAttachments returns the audio files of one message, in order.
func audioAttachments(files []slack.File) []slack.File {
	var out []slack.File
	for _, f := range files {
		if strings.HasPrefix(f.Mimetype, "audio/") {
			out = append(out, f)
		}
	}
	return out
}

// --- Outbound ---

func (b *Bot) reply(ev *slackevents.MessageEvent, text string) {
	if err := b.chat.SendMessage(ev.Channel, text); err != nil {
		log.Printf("reply error channel=%s: %v", ev.Channel, err)
	}
}

func (b *Bot) replyStoreError(ev *slackevents.MessageEvent, err error) {
	log.Printf("store error channel=%s: %v", ev.Channel, err)
	b.reply(ev, fmt.Sprintf("❌ Error de base de datos: %v", err))
}

func (b *Bot) notifyAlertChannel(text string) {
	if err := b.chat.SendMessage(b.cfg.AlertChannelID, text); err != nil {
		log.Printf("alert channel error: %v", err)
	}
}

// --- Slack platform adapter ---

// slackChat adapts the Slack Web API to the chatReader and messageSender
// capabilities the pipeline uses.
type slackChat struct {
	api      *slack.Client
	sellerID string
}

// FetchMessages returns the most recent messages of one conversation,
// oldest first, with speakers mapped relative to the business operator.
func (c *slackChat) FetchMessages(chatID string, limit int) ([]ChatMessage, error) {
	resp, err := c.api.GetConversationHistory(&slack.GetConversationHistoryParameters{
		ChannelID: chatID,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	// History arrives newest first.
	out := make([]ChatMessage, 0, len(resp.Messages))
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		m := resp.Messages[i]
		if m.SubType == "bot_message" || m.BotID != "" {
			continue
		}
		speaker := SpeakerCustomer
		if m.User == c.sellerID {
			speaker = SpeakerSeller
		}
		out = append(out, ChatMessage{
			ID:        m.Timestamp,
			Speaker:   speaker,
			Text:      m.Text,
			Timestamp: parseSlackTimestamp(m.Timestamp),
			HasAudio:  len(audioAttachments(m.Files)) > 0,
		})
	}
	return out, nil
}

func (c *slackChat) SendMessage(channelID, text string) error {
	_, _, err := c.api.PostMessage(channelID, slack.MsgOptionText(text, false))
	return err
}

// parseSlackTimestamp converts a Slack "seconds.fraction" event timestamp.
func parseSlackTimestamp(ts string) time.Time {
	parts := strings.SplitN(ts, ".", 2)
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}
