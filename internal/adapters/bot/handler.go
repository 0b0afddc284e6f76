package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"aiclub-bot/internal/adapters/telegram"
	"aiclub-bot/internal/domain"
	"aiclub-bot/internal/infra/metrics"
	"aiclub-bot/internal/usecase/helpfulness"
	"aiclub-bot/internal/usecase/newsletter"
	"aiclub-bot/internal/usecase/pdfstore"
	"aiclub-bot/internal/usecase/roast"
)

const (
	stepTimeout    = 60 * time.Second
	bodyTimeout    = 300 * time.Second
	confirmTimeout = 30 * time.Second
)

// botAPI — срез Bot API, нужный обработчику.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Handler обслуживает вебхук бота.
type Handler struct {
	bot            botAPI
	log            zerolog.Logger
	users          domain.UserRepo
	newsletters    *newsletter.Service
	pdfs           *pdfstore.Service
	tracker        *helpfulness.Service
	roasts         *roast.Service
	cache          domain.Cache
	dialogs        *Dialogs
	httpClient     *http.Client
	selfID         int64
	adminIDs       map[int64]struct{}
	defaultChannel string
	pageSize       int
}

// HandlerDeps — зависимости обработчика.
type HandlerDeps struct {
	Bot            botAPI
	Log            zerolog.Logger
	Users          domain.UserRepo
	Newsletters    *newsletter.Service
	PDFs           *pdfstore.Service
	Tracker        *helpfulness.Service
	Roasts         *roast.Service
	Cache          domain.Cache
	SelfID         int64
	AdminTGIDs     []int64
	DefaultChannel string
	PageSize       int
}

// NewHandler создаёт обработчик.
func NewHandler(deps HandlerDeps) *Handler {
	admins := make(map[int64]struct{}, len(deps.AdminTGIDs))
	for _, id := range deps.AdminTGIDs {
		admins[id] = struct{}{}
	}
	return &Handler{
		bot:            deps.Bot,
		log:            deps.Log,
		users:          deps.Users,
		newsletters:    deps.Newsletters,
		pdfs:           deps.PDFs,
		tracker:        deps.Tracker,
		roasts:         deps.Roasts,
		cache:          deps.Cache,
		dialogs:        NewDialogs(),
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		selfID:         deps.SelfID,
		adminIDs:       admins,
		defaultChannel: deps.DefaultChannel,
		pageSize:       deps.PageSize,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Msg("паника при обработке апдейта")
		}
	}()
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		if h.dialogs.Deliver(msg) {
			return
		}
		h.handlePlainMessage(ctx, msg)
		return
	}

	switch {
	case strings.HasPrefix(text, "/start"):
		h.handleStart(msg)
	case strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, h.buildHelpMessage())
	case strings.HasPrefix(text, "/create_newsletter"):
		h.handleCreateNewsletter(msg)
	case strings.HasPrefix(text, "/edit_newsletter"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/edit_newsletter"))
		h.handleEditNewsletter(msg, payload)
	case strings.HasPrefix(text, "/list_newsletters"):
		h.handleListNewsletters(ctx, msg)
	case strings.HasPrefix(text, "/clear_newsletters_confirm"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/clear_newsletters_confirm"))
		h.handleClearConfirm(ctx, msg, payload)
	case strings.HasPrefix(text, "/clear_newsletters"):
		h.handleClearRequest(msg)
	case strings.HasPrefix(text, "/upload_pdf"):
		h.handleUploadPDF(msg)
	case strings.HasPrefix(text, "/list_pdfs"):
		h.handleListPDFs(msg.Chat.ID)
	case strings.HasPrefix(text, "/get_pdf"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/get_pdf"))
		h.handleGetPDF(msg.Chat.ID, payload)
	case strings.HasPrefix(text, "/email_pdf"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/email_pdf"))
		h.handleEmailPDF(ctx, msg, payload)
	case strings.HasPrefix(text, "/roast"):
		h.handleRoast(msg)
	case strings.HasPrefix(text, "/my_score"):
		h.handleMyScore(msg)
	case strings.HasPrefix(text, "/leaderboard"):
		h.handleLeaderboard(msg.Chat.ID)
	case strings.HasPrefix(text, "/grant"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/grant"))
		h.handleGrant(msg, payload)
	default:
		h.reply(msg.Chat.ID, "Неизвестная команда. Используйте /help")
	}
}

// handlePlainMessage отдаёт обычное сообщение трекеру полезности.
func (h *Handler) handlePlainMessage(ctx context.Context, msg *tgbotapi.Message) {
	m := helpfulness.Message{
		ID:         msg.MessageID,
		ChatID:     msg.Chat.ID,
		AuthorID:   msg.From.ID,
		AuthorName: displayName(msg.From),
		Text:       msg.Text,
	}
	if msg.ReplyToMessage != nil {
		m.ReplyToID = msg.ReplyToMessage.MessageID
	}
	if feedback := h.tracker.HandleMessage(ctx, m); feedback != "" {
		h.reply(msg.Chat.ID, feedback)
	}
}

func (h *Handler) handleStart(msg *tgbotapi.Message) {
	user, err := h.users.UpsertByTGID(msg.From.ID, msg.From.UserName)
	if err != nil {
		h.log.Error().Err(err).Int64("user", msg.From.ID).Msg("не удалось сохранить профиль")
		h.reply(msg.Chat.ID, "Ошибка сохранения профиля. Попробуйте позже.")
		return
	}
	if _, ok := h.adminIDs[msg.From.ID]; ok && user.Role != domain.UserRoleAdmin {
		if err := h.users.UpdateRole(msg.From.ID, domain.UserRoleAdmin); err != nil {
			h.log.Error().Err(err).Int64("user", msg.From.ID).Msg("не удалось назначить администратора")
		}
	}
	h.reply(msg.Chat.ID, h.buildStartMessage())
}

func (h *Handler) handleCreateNewsletter(msg *tgbotapi.Message) {
	if !h.requireRole(msg, domain.UserRole.CanManageNewsletters, "Создавать рассылки могут только менеджеры рассылок.") {
		return
	}
	chatID, userID := msg.Chat.ID, msg.From.ID
	if !h.dialogs.Claim(chatID, userID) {
		h.reply(chatID, "Сначала завершите предыдущую команду.")
		return
	}
	go h.runDialog(chatID, userID, func() {
		ctx := context.Background()

		h.reply(chatID, "Введите заголовок рассылки:")
		title, ok := h.awaitText(ctx, chatID, userID, stepTimeout)
		if !ok {
			return
		}
		h.reply(chatID, "Введите текст рассылки:")
		body, ok := h.awaitText(ctx, chatID, userID, bodyTimeout)
		if !ok {
			return
		}
		h.reply(chatID, "Введите время публикации в формате ГГГГ-ММ-ДД ЧЧ:ММ:")
		rawTime, ok := h.awaitText(ctx, chatID, userID, stepTimeout)
		if !ok {
			return
		}
		h.reply(chatID, fmt.Sprintf("Куда публиковать? Укажите @канал или отправьте %q для канала клуба.", newsletter.KeepCurrent))
		channel, ok := h.awaitText(ctx, chatID, userID, stepTimeout)
		if !ok {
			return
		}
		if channel == newsletter.KeepCurrent {
			channel = h.defaultChannel
		}

		n, err := h.newsletters.Create(ctx, title, body, rawTime, channel)
		if errors.Is(err, newsletter.ErrInvalidTimeFormat) {
			h.reply(chatID, "Не удалось разобрать время. Пример: 2026-09-01 18:30. Начните заново: /create_newsletter")
			return
		}
		if err != nil {
			h.log.Error().Err(err).Msg("не удалось создать рассылку")
			h.reply(chatID, "Не удалось создать рассылку. Попробуйте позже.")
			return
		}
		h.reply(chatID, fmt.Sprintf("Рассылка №%d запланирована на %s.", n.ID, n.ScheduledAt.Format("2006-01-02 15:04")))
	})
}

func (h *Handler) handleEditNewsletter(msg *tgbotapi.Message, payload string) {
	if !h.requireRole(msg, domain.UserRole.CanManageNewsletters, "Редактировать рассылки могут только менеджеры рассылок.") {
		return
	}
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		h.reply(msg.Chat.ID, "Укажите номер рассылки: /edit_newsletter 3")
		return
	}
	chatID, userID := msg.Chat.ID, msg.From.ID
	if !h.dialogs.Claim(chatID, userID) {
		h.reply(chatID, "Сначала завершите предыдущую команду.")
		return
	}
	go h.runDialog(chatID, userID, func() {
		ctx := context.Background()

		skipHint := fmt.Sprintf(" (или %q, чтобы оставить как есть)", newsletter.KeepCurrent)
		var fields newsletter.EditFields

		h.reply(chatID, "Новый заголовок"+skipHint+":")
		title, ok := h.awaitText(ctx, chatID, userID, stepTimeout)
		if !ok {
			return
		}
		if title != newsletter.KeepCurrent {
			fields.Title = &title
		}
		h.reply(chatID, "Новый текст"+skipHint+":")
		body, ok := h.awaitText(ctx, chatID, userID, bodyTimeout)
		if !ok {
			return
		}
		if body != newsletter.KeepCurrent {
			fields.Body = &body
		}
		h.reply(chatID, "Новое время (ГГГГ-ММ-ДД ЧЧ:ММ)"+skipHint+":")
		rawTime, ok := h.awaitText(ctx, chatID, userID, stepTimeout)
		if !ok {
			return
		}
		if rawTime != newsletter.KeepCurrent {
			fields.TimeRaw = &rawTime
		}
		h.reply(chatID, "Новый канал"+skipHint+":")
		channel, ok := h.awaitText(ctx, chatID, userID, stepTimeout)
		if !ok {
			return
		}
		if channel != newsletter.KeepCurrent {
			fields.ChannelRef = &channel
		}

		n, err := h.newsletters.Edit(ctx, id, fields)
		switch {
		case errors.Is(err, newsletter.ErrNotFound):
			h.reply(chatID, fmt.Sprintf("Рассылка №%d не найдена.", id))
		case errors.Is(err, newsletter.ErrInvalidTimeFormat):
			h.reply(chatID, "Не удалось разобрать время. Пример: 2026-09-01 18:30.")
		case err != nil:
			h.log.Error().Err(err).Int64("id", id).Msg("не удалось изменить рассылку")
			h.reply(chatID, "Не удалось изменить рассылку. Попробуйте позже.")
		default:
			h.reply(chatID, fmt.Sprintf("Рассылка №%d обновлена, публикация %s.", n.ID, n.ScheduledAt.Format("2006-01-02 15:04")))
		}
	})
}

func (h *Handler) handleListNewsletters(ctx context.Context, msg *tgbotapi.Message) {
	if !h.requireRole(msg, domain.UserRole.CanManageNewsletters, "Список рассылок доступен только менеджерам рассылок.") {
		return
	}
	offset := 0
	total := 0
	for {
		page, err := h.newsletters.List(ctx, h.pageSize, offset)
		if err != nil {
			h.log.Error().Err(err).Msg("не удалось получить список рассылок")
			h.reply(msg.Chat.ID, "Не удалось получить список рассылок.")
			return
		}
		if len(page) == 0 {
			break
		}
		var b strings.Builder
		for _, n := range page {
			fmt.Fprintf(&b, "№%d · %s · %s · %s\n", n.ID, n.Title, n.ScheduledAt.Format("2006-01-02 15:04"), n.ChannelRef)
		}
		h.reply(msg.Chat.ID, b.String())
		total += len(page)
		if len(page) < h.pageSize {
			break
		}
		offset += h.pageSize
	}
	if total == 0 {
		h.reply(msg.Chat.ID, "Запланированных рассылок нет.")
	}
}

func (h *Handler) handleClearRequest(msg *tgbotapi.Message) {
	if !h.requireRole(msg, domain.UserRole.CanManageNewsletters, "Очищать рассылки могут только менеджеры рассылок.") {
		return
	}
	key := clearConfirmKey(msg.From.ID)
	if err := h.cache.Set(key, []byte("1"), confirmTimeout); err != nil {
		h.log.Error().Err(err).Msg("не удалось сохранить токен подтверждения")
		h.reply(msg.Chat.ID, "Попробуйте позже.")
		return
	}
	h.reply(msg.Chat.ID, "⚠️ Будут удалены ВСЕ запланированные рассылки. Отправьте /clear_newsletters_confirm YES в течение 30 секунд.")
}

func (h *Handler) handleClearConfirm(ctx context.Context, msg *tgbotapi.Message, payload string) {
	if !h.requireRole(msg, domain.UserRole.CanManageNewsletters, "Очищать рассылки могут только менеджеры рассылок.") {
		return
	}
	if payload != "YES" {
		h.reply(msg.Chat.ID, "Очистка не подтверждена: нужно слово YES. Рассылки не тронуты.")
		return
	}
	key := clearConfirmKey(msg.From.ID)
	if _, err := h.cache.Get(key); err != nil {
		h.reply(msg.Chat.ID, "Подтверждение не найдено или устарело. Сначала отправьте /clear_newsletters")
		return
	}
	// токен одноразовый: повторное подтверждение требует нового запроса
	if err := h.cache.Delete(key); err != nil {
		h.log.Error().Err(err).Msg("не удалось удалить токен подтверждения")
	}
	removed, err := h.newsletters.ClearAll(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось очистить рассылки")
		h.reply(msg.Chat.ID, "Не удалось очистить рассылки. Попробуйте позже.")
		return
	}
	h.reply(msg.Chat.ID, fmt.Sprintf("Удалено рассылок: %d.", removed))
}

func (h *Handler) handleUploadPDF(msg *tgbotapi.Message) {
	if !h.requireRole(msg, domain.UserRole.CanUploadPDFs, "Загружать документы могут только хранители архива.") {
		return
	}
	chatID, userID := msg.Chat.ID, msg.From.ID
	if !h.dialogs.Claim(chatID, userID) {
		h.reply(chatID, "Сначала завершите предыдущую команду.")
		return
	}
	go h.runDialog(chatID, userID, func() {
		ctx := context.Background()

		h.reply(chatID, fmt.Sprintf("Пришлите PDF-файл (до %d МБ):", h.pdfs.MaxBytes()/(1<<20)))
		reply, err := h.dialogs.Await(ctx, chatID, userID, stepTimeout)
		if errors.Is(err, ErrDialogTimeout) {
			h.reply(chatID, "Время ожидания истекло. Начните заново: /upload_pdf")
			return
		}
		if err != nil {
			return
		}
		if reply.Document == nil {
			h.reply(chatID, "Это не файл. Начните заново: /upload_pdf")
			return
		}

		doc := reply.Document
		safe, err := h.pdfs.ValidateUpload(doc.FileName, int64(doc.FileSize))
		if err != nil {
			h.reply(chatID, uploadErrorText(err))
			return
		}
		if err := h.downloadDocument(doc.FileID, safe); err != nil {
			if errors.Is(err, pdfstore.ErrDuplicate) || errors.Is(err, pdfstore.ErrTooLarge) {
				h.reply(chatID, uploadErrorText(err))
				return
			}
			h.log.Error().Err(err).Str("file", safe).Msg("не удалось сохранить документ")
			h.reply(chatID, "Не удалось сохранить файл. Попробуйте позже.")
			return
		}
		h.reply(chatID, fmt.Sprintf("Файл %s сохранён.", safe))
	})
}

// downloadDocument скачивает файл с серверов Telegram и кладёт в хранилище.
func (h *Handler) downloadDocument(fileID, safeName string) error {
	start := time.Now()
	link, err := h.bot.GetFileDirectURL(fileID)
	metrics.ObserveNetworkRequest("telegram", "getFile", "file", start, err)
	if err != nil {
		return fmt.Errorf("получение ссылки на файл: %w", err)
	}

	start = time.Now()
	resp, err := h.httpClient.Get(link)
	metrics.ObserveNetworkRequest("telegram", "downloadFile", "file", start, err)
	if err != nil {
		return fmt.Errorf("скачивание файла: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("скачивание файла: статус %d", resp.StatusCode)
	}
	return h.pdfs.Save(safeName, resp.Body)
}

func (h *Handler) handleListPDFs(chatID int64) {
	names, err := h.pdfs.ListFiles()
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось прочитать хранилище документов")
		h.reply(chatID, "Не удалось получить список файлов.")
		return
	}
	if len(names) == 0 {
		h.reply(chatID, "Архив пуст.")
		return
	}
	var b strings.Builder
	b.WriteString("📎 Файлы в архиве:\n")
	for _, name := range names {
		b.WriteString("• " + name + "\n")
	}
	h.reply(chatID, b.String())
}

func (h *Handler) handleGetPDF(chatID int64, payload string) {
	if payload == "" {
		h.reply(chatID, "Укажите имя файла: /get_pdf report.pdf")
		return
	}
	path, err := h.pdfs.Path(payload)
	if errors.Is(err, pdfstore.ErrNotFound) {
		h.reply(chatID, fmt.Sprintf("Файл %s не найден. Список: /list_pdfs", payload))
		return
	}
	if err != nil {
		h.reply(chatID, "Не удалось найти файл.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	start := time.Now()
	_, err = h.bot.Send(doc)
	metrics.ObserveNetworkRequest("telegram", "sendDocument", "file", start, err)
	if err != nil {
		h.log.Error().Err(err).Str("file", payload).Msg("не удалось отправить документ")
		h.reply(chatID, "Не удалось отправить файл. Попробуйте позже.")
	}
}

func (h *Handler) handleEmailPDF(ctx context.Context, msg *tgbotapi.Message, payload string) {
	if !h.requireRole(msg, domain.UserRole.CanUploadPDFs, "Отправлять документы почтой могут только хранители архива.") {
		return
	}
	parts := strings.Fields(payload)
	if len(parts) < 2 {
		h.reply(msg.Chat.ID, "Формат: /email_pdf адрес@почты файл1.pdf,файл2.pdf")
		return
	}
	address := parts[0]
	var files []string
	for _, chunk := range parts[1:] {
		for _, name := range strings.Split(chunk, ",") {
			if name = strings.TrimSpace(name); name != "" {
				files = append(files, name)
			}
		}
	}

	err := h.pdfs.Email(ctx, address, files)
	switch {
	case errors.Is(err, pdfstore.ErrInvalidEmail):
		h.reply(msg.Chat.ID, fmt.Sprintf("Адрес %q не похож на почту.", address))
	case errors.Is(err, pdfstore.ErrNotFound):
		h.reply(msg.Chat.ID, fmt.Sprintf("%v. Список: /list_pdfs", err))
	case err != nil:
		h.log.Error().Err(err).Str("to", address).Msg("не удалось отправить письмо")
		h.reply(msg.Chat.ID, "Не удалось отправить письмо. Попробуйте позже.")
	default:
		h.reply(msg.Chat.ID, fmt.Sprintf("Письмо с %d файл(ами) отправлено на %s.", len(files), address))
	}
}

func (h *Handler) handleRoast(msg *tgbotapi.Message) {
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		h.reply(msg.Chat.ID, "Ответьте командой /roast на сообщение жертвы.")
		return
	}
	target := msg.ReplyToMessage.From
	if target.ID == msg.From.ID {
		h.reply(msg.Chat.ID, "Себя жарить нельзя!")
		return
	}
	if target.ID == h.selfID {
		h.reply(msg.Chat.ID, "У ботов тоже есть чувства. Почти.")
		return
	}

	phrase, remaining, err := h.roasts.Roast(msg.From.ID, displayName(target))
	if errors.Is(err, roast.ErrCooldown) {
		seconds := int(remaining.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		h.reply(msg.Chat.ID, fmt.Sprintf("Остынь! Следующая прожарка через %d сек.", seconds))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось выдать прожарку")
		return
	}
	h.reply(msg.Chat.ID, "🔥 "+phrase)
}

func (h *Handler) handleMyScore(msg *tgbotapi.Message) {
	score, err := h.tracker.Total(msg.From.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("user", msg.From.ID).Msg("не удалось получить рейтинг")
		h.reply(msg.Chat.ID, "Не удалось получить рейтинг.")
		return
	}
	if score.ReplyCount == 0 {
		h.reply(msg.Chat.ID, "У вас пока нет оценённых ответов. Помогайте в чате!")
		return
	}
	h.reply(msg.Chat.ID, fmt.Sprintf("Ваш рейтинг полезности: %d (ответов оценено: %d).", score.TotalScore, score.ReplyCount))
}

func (h *Handler) handleLeaderboard(chatID int64) {
	top, err := h.tracker.Top(10)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось получить таблицу лидеров")
		h.reply(chatID, "Не удалось получить таблицу лидеров.")
		return
	}
	if len(top) == 0 {
		h.reply(chatID, "Таблица лидеров пока пуста.")
		return
	}
	var b strings.Builder
	b.WriteString("🏆 Самые полезные участники:\n")
	for i, s := range top {
		name := fmt.Sprintf("id%d", s.TGUserID)
		if user, err := h.users.GetByTGID(s.TGUserID); err == nil && user.Username != "" {
			name = "@" + user.Username
		}
		fmt.Fprintf(&b, "%d. %s — %d баллов (%d ответов)\n", i+1, name, s.TotalScore, s.ReplyCount)
	}
	h.reply(chatID, b.String())
}

func (h *Handler) handleGrant(msg *tgbotapi.Message, payload string) {
	if !h.requireRole(msg, domain.UserRole.IsAdmin, "Назначать роли может только администратор.") {
		return
	}
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		h.reply(msg.Chat.ID, "Ответьте командой /grant <роль> на сообщение участника.")
		return
	}
	role, ok := domain.ParseRole(payload)
	if !ok {
		h.reply(msg.Chat.ID, fmt.Sprintf("Неизвестная роль %q. Доступны: %s.", payload, strings.Join(domain.RoleNames(), ", ")))
		return
	}
	target := msg.ReplyToMessage.From
	if _, err := h.users.UpsertByTGID(target.ID, target.UserName); err != nil {
		h.log.Error().Err(err).Int64("user", target.ID).Msg("не удалось сохранить участника")
		h.reply(msg.Chat.ID, "Не удалось сохранить участника.")
		return
	}
	if err := h.users.UpdateRole(target.ID, role); err != nil {
		h.log.Error().Err(err).Int64("user", target.ID).Msg("не удалось назначить роль")
		h.reply(msg.Chat.ID, "Не удалось назначить роль.")
		return
	}
	h.reply(msg.Chat.ID, fmt.Sprintf("Роль %s назначена %s.", role, displayName(target)))
}

// requireRole проверяет право вызывающего и отвечает отказом при его
// отсутствии. Администраторы из конфигурации проходят всегда.
func (h *Handler) requireRole(msg *tgbotapi.Message, allowed func(domain.UserRole) bool, denied string) bool {
	if _, ok := h.adminIDs[msg.From.ID]; ok {
		return true
	}
	user, err := h.users.GetByTGID(msg.From.ID)
	if errors.Is(err, domain.ErrNotFound) {
		h.reply(msg.Chat.ID, "Сначала отправьте /start")
		return false
	}
	if err != nil {
		h.log.Error().Err(err).Int64("user", msg.From.ID).Msg("не удалось получить пользователя")
		h.reply(msg.Chat.ID, "Попробуйте позже.")
		return false
	}
	if !allowed(user.Role) {
		h.reply(msg.Chat.ID, denied)
		return false
	}
	return true
}

// runDialog исполняет пошаговый диалог, гарантируя освобождение пары
// чат+пользователь и переживая панику любого шага.
func (h *Handler) runDialog(chatID, userID int64, fn func()) {
	defer h.dialogs.Release(chatID, userID)
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Int64("chat", chatID).Int64("user", userID).Msg("паника в диалоге команды")
		}
	}()
	fn()
}

// awaitText ждёт текстовый ответ пользователя в диалоге.
func (h *Handler) awaitText(ctx context.Context, chatID, userID int64, timeout time.Duration) (string, bool) {
	reply, err := h.dialogs.Await(ctx, chatID, userID, timeout)
	if errors.Is(err, ErrDialogTimeout) {
		h.reply(chatID, "Время ожидания истекло, команда отменена.")
		return "", false
	}
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(reply.Text)
	if text == "" {
		h.reply(chatID, "Нужен текст, команда отменена.")
		return "", false
	}
	return text, true
}

func (h *Handler) reply(chatID int64, text string) {
	for _, part := range telegram.SplitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram", "sendMessage", "chat", start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить сообщение")
			return
		}
	}
}

func (h *Handler) buildStartMessage() string {
	lines := []string{
		"👋 Добро пожаловать в бот AI-клуба!",
		"",
		"Что я умею:",
		"• 📬 Планировать рассылки в канал клуба.",
		"• 📎 Хранить PDF-документы и отправлять их почтой.",
		"• 📰 Анонсировать свежие выпуски The Batch.",
		"• 💡 Начислять баллы за полезные ответы в чате.",
		"• 🔥 Жарить участников по запросу.",
		"",
		"Полный список команд: /help",
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) buildHelpMessage() string {
	sections := []string{
		"📖 Команды бота:",
		"",
		"Рассылки (для менеджеров):",
		"• /create_newsletter — запланировать рассылку.",
		"• /edit_newsletter 3 — изменить рассылку №3.",
		"• /list_newsletters — показать запланированные.",
		"• /clear_newsletters — удалить все (с подтверждением).",
		"",
		"Документы:",
		"• /upload_pdf — загрузить PDF (для хранителей архива).",
		"• /list_pdfs — список файлов.",
		"• /get_pdf report.pdf — получить файл в чат.",
		"• /email_pdf адрес@почты файл1.pdf,файл2.pdf — отправить почтой.",
		"",
		"Рейтинг и развлечения:",
		"• /my_score — ваш рейтинг полезности.",
		"• /leaderboard — самые полезные участники.",
		"• /roast — ответьте на сообщение жертвы.",
		"",
		"Администрирование:",
		"• /grant <роль> — ответом на сообщение участника.",
	}
	return strings.Join(sections, "\n")
}

func uploadErrorText(err error) string {
	switch {
	case errors.Is(err, pdfstore.ErrNotPDF):
		return "Принимаются только файлы .pdf."
	case errors.Is(err, pdfstore.ErrTooLarge):
		return "Файл слишком большой."
	case errors.Is(err, pdfstore.ErrDuplicate):
		return "Файл с таким именем уже есть. Переименуйте и пришлите снова."
	default:
		return "Не удалось принять файл."
	}
}

func clearConfirmKey(tgUserID int64) string {
	return fmt.Sprintf("clear_newsletters:%d", tgUserID)
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return fmt.Sprintf("id%d", u.ID)
	}
	return name
}
