package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"discord-proxy-bot/internal/apperr"
	"discord-proxy-bot/internal/models"
	"discord-proxy-bot/internal/proxy"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const searchLimit = 10

// call is one invocation of a text command.
type call struct {
	name string
	msg  *discordgo.MessageCreate
	args []string
	// line is the raw text after the command name.
	line string
}

func (c *call) arg(i int) string {
	if i < len(c.args) {
		return c.args[i]
	}
	return ""
}

func (c *call) author() string { return c.msg.Author.ID }

type command struct {
	names          []string
	guildOnly      bool
	manageChannels bool
	run            func(h *BotHandler, ctx context.Context, c *call) error
}

var commands = []command{
	{names: []string{"create", "cc", "create_character"}, run: (*BotHandler).cmdCreate},
	{names: []string{"delete", "dc"}, run: (*BotHandler).cmdDelete},
	{names: []string{"edit", "ec"}, run: (*BotHandler).cmdEdit},
	{names: []string{"view"}, run: (*BotHandler).cmdView},
	{names: []string{"list", "lc"}, run: (*BotHandler).cmdList},
	{names: []string{"add_prefix", "ap"}, run: (*BotHandler).cmdAddPrefix},
	{names: []string{"remove_prefix", "rp", "dp", "delete_prefix"}, run: (*BotHandler).cmdRemovePrefix},
	{names: []string{"proxy"}, guildOnly: true, run: (*BotHandler).cmdProxy},
	{names: []string{"unproxy"}, guildOnly: true, run: (*BotHandler).cmdUnproxy},
	{names: []string{"help"}, run: (*BotHandler).cmdHelp},
	{names: []string{"find"}, run: (*BotHandler).cmdFind},
	{names: []string{"whitelist_channel", "allow_channel"}, guildOnly: true, manageChannels: true, run: (*BotHandler).cmdWhitelistChannel},
	{names: []string{"blacklist_channel", "deny_channel"}, guildOnly: true, manageChannels: true, run: (*BotHandler).cmdBlacklistChannel},
	{names: []string{"whitelist_category", "allow_category"}, guildOnly: true, manageChannels: true, run: (*BotHandler).cmdWhitelistCategory},
	{names: []string{"blacklist_category", "deny_category"}, guildOnly: true, manageChannels: true, run: (*BotHandler).cmdBlacklistCategory},
}

func lookupCommand(name string) *command {
	for i := range commands {
		for _, n := range commands[i].names {
			if n == name {
				return &commands[i]
			}
		}
	}
	return nil
}

// parseCommand splits "<prefix>name rest" into the lowercased name and the
// rest of the line.
func parseCommand(content, prefix string) (name, line string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	body := content[len(prefix):]
	end := strings.IndexFunc(body, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' })
	if end < 0 {
		end = len(body)
	}
	name = strings.ToLower(body[:end])
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(body[end:]), true
}

// userError is an error whose message is shown to the member as is.
func userError(format string, args ...any) error {
	return apperr.New(apperr.CodeInvalidInput, fmt.Sprintf(format, args...))
}

// runCommand executes m as a text command and reports whether it was one.
func (h *BotHandler) runCommand(ctx context.Context, m *discordgo.MessageCreate) bool {
	name, line, ok := parseCommand(m.Content, h.cfg.CommandPrefix)
	if !ok {
		return false
	}
	cmd := lookupCommand(name)
	if cmd == nil {
		return false
	}

	logger := h.logger.With(zap.String("command", name), zap.String("user", m.Author.ID))
	if cmd.guildOnly && m.GuildID == "" {
		h.reply(ctx, m, "This command only works in a server.")
		return true
	}
	if cmd.manageChannels && !h.canManageChannels(m) {
		h.reply(ctx, m, "You need the Manage Channels permission to do that.")
		return true
	}

	c := &call{name: name, msg: m, args: splitArgs(line), line: line}
	if err := cmd.run(h, ctx, c); err != nil {
		h.replyError(ctx, m, err, logger)
	}
	return true
}

func (h *BotHandler) replyError(ctx context.Context, m *discordgo.MessageCreate, err error, logger *zap.Logger) {
	switch apperr.CodeOf(err) {
	case apperr.CodeNotFound:
		h.notice(ctx, m.ChannelID, "Character not found!")
	case apperr.CodeNotOwner:
		h.reply(ctx, m, "You do not own this character!")
	case apperr.CodeTimeout:
		h.reply(ctx, m, "Timed out!")
	case apperr.CodeInvalidInput:
		var e *apperr.Error
		errors.As(err, &e)
		h.reply(ctx, m, e.Message)
	default:
		logger.Error("command failed", zap.Error(err))
		h.reply(ctx, m, "Something went wrong, please try again.")
	}
}

func (h *BotHandler) reply(ctx context.Context, m *discordgo.MessageCreate, content string) {
	if _, err := h.platform.Send(ctx, m.ChannelID, content); err != nil {
		h.logger.Warn("reply failed", zap.String("channel", m.ChannelID), zap.Error(err))
	}
}

// notice sends a reply that removes itself after the notice TTL.
func (h *BotHandler) notice(ctx context.Context, channelID, content string) {
	if err := h.platform.Notice(ctx, channelID, content, h.cfg.NoticeTTL); err != nil {
		h.logger.Warn("notice failed", zap.String("channel", channelID), zap.Error(err))
	}
}

func (h *BotHandler) canManageChannels(m *discordgo.MessageCreate) bool {
	perms, err := h.session.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		h.logger.Warn("permission lookup failed", zap.String("user", m.Author.ID), zap.Error(err))
		return false
	}
	return perms&(discordgo.PermissionManageChannels|discordgo.PermissionAdministrator) != 0
}

// ask sends question and waits for the author's next message in the channel.
func (h *BotHandler) ask(ctx context.Context, m *discordgo.MessageCreate, question string) (*discordgo.Message, error) {
	if _, err := h.platform.Send(ctx, m.ChannelID, question); err != nil {
		return nil, err
	}
	return h.platform.waiter.wait(ctx, m.Author.ID, m.ChannelID, h.cfg.PromptTimeout)
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, userError("%q is not a character id.", s)
	}
	return uint(id), nil
}

// ownedCharacter loads the character with the given id and checks that
// owner owns it.
func (h *BotHandler) ownedCharacter(ctx context.Context, rawID, owner string) (*models.Character, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	char, err := h.db.Character(ctx, id)
	if err != nil {
		return nil, err
	}
	if char.Owner != owner {
		return nil, apperr.ErrNotOwner
	}
	return char, nil
}

func attachmentURL(m *discordgo.Message) string {
	if len(m.Attachments) == 0 {
		return ""
	}
	return m.Attachments[0].URL
}

// refresh updates the avatar cache and search index after a character
// changed. Both are best effort.
func (h *BotHandler) refresh(ctx context.Context, char *models.Character, imageChanged bool) {
	if imageChanged {
		h.avatars.Fetch(ctx, char.ID, char.Image)
	}
	if h.search != nil {
		h.search.Index(ctx, char)
	}
}

func (h *BotHandler) cmdCreate(ctx context.Context, c *call) error {
	var char *models.Character
	if len(c.args) == 0 {
		var err error
		if char, err = h.createInteractive(ctx, c.msg); err != nil {
			return err
		}
	} else {
		image, info := c.arg(1), restAfter(c.line, 2)
		if url := attachmentURL(c.msg.Message); url != "" {
			info = strings.TrimSpace(image + " " + info)
			image = url
		}
		char = &models.Character{Name: c.arg(0), Image: image, Info: info}
	}
	char.Owner = c.author()

	if err := h.db.CreateCharacter(ctx, char); err != nil {
		return err
	}
	h.refresh(ctx, char, true)

	embed := &discordgo.MessageEmbed{
		Title:       "Character Created",
		Description: "Name: " + char.Name,
		Color:       embedColor,
	}
	if char.Image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: char.Image}
	}
	_, err := h.session.ChannelMessageSendComplex(c.msg.ChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("Character created with character id %d, run `%sadd_prefix` to add a prefix to this character!",
			char.ID, h.cfg.CommandPrefix),
		Embeds: []*discordgo.MessageEmbed{embed},
	}, discordgo.WithContext(ctx))
	return err
}

// createSteps are asked in order by the interactive create command.
var createSteps = []struct {
	question string
	set      func(c *models.Character, m *discordgo.Message)
}{
	{"Enter character name:", func(c *models.Character, m *discordgo.Message) { c.Name = m.Content }},
	{"Enter character pronouns:", func(c *models.Character, m *discordgo.Message) { c.Pronouns = m.Content }},
	{"Enter character race:", func(c *models.Character, m *discordgo.Message) { c.Race = m.Content }},
	{"Enter character class(es):", func(c *models.Character, m *discordgo.Message) { c.Classes = m.Content }},
	{"Enter character physical appearance:", func(c *models.Character, m *discordgo.Message) { c.Description = m.Content }},
	{"Enter character demeanor:", func(c *models.Character, m *discordgo.Message) { c.Demeanor = m.Content }},
	{"Enter character image:", func(c *models.Character, m *discordgo.Message) {
		c.Image = m.Content
		if url := attachmentURL(m); url != "" {
			c.Image = url
		}
	}},
	{"Enter character wiki link (enter 'none' to skip):", func(c *models.Character, m *discordgo.Message) {
		if !strings.EqualFold(strings.TrimSpace(m.Content), "none") {
			c.Wiki = m.Content
		}
	}},
}

func (h *BotHandler) createInteractive(ctx context.Context, m *discordgo.MessageCreate) (*models.Character, error) {
	char := &models.Character{}
	for _, step := range createSteps {
		answer, err := h.ask(ctx, m, step.question)
		if err != nil {
			return nil, err
		}
		step.set(char, answer)
	}
	if strings.TrimSpace(char.Name) == "" {
		return nil, userError("A character needs a name.")
	}
	return char, nil
}

func (h *BotHandler) cmdDelete(ctx context.Context, c *call) error {
	if len(c.args) < 1 {
		return userError("Usage: %sdelete <id>", h.cfg.CommandPrefix)
	}
	char, err := h.ownedCharacter(ctx, c.arg(0), c.author())
	if err != nil {
		return err
	}
	if err := h.db.DeleteCharacter(ctx, char.ID); err != nil {
		return err
	}
	if err := h.avatars.Remove(char.ID); err != nil {
		h.logger.Warn("remove avatar", zap.Uint("character", char.ID), zap.Error(err))
	}
	h.reply(ctx, c.msg, "Character deleted!")
	return nil
}

func editableFieldNames() string {
	names := make([]string, 0, len(models.EditableFields))
	for name := range models.EditableFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (h *BotHandler) cmdEdit(ctx context.Context, c *call) error {
	if len(c.args) < 2 {
		return userError("Usage: %sedit <id> <field> <value>", h.cfg.CommandPrefix)
	}
	field := strings.ToLower(c.arg(1))
	if _, ok := models.EditableFields[field]; !ok {
		return userError("Available fields: %s", editableFieldNames())
	}
	char, err := h.ownedCharacter(ctx, c.arg(0), c.author())
	if err != nil {
		return err
	}

	value := restAfter(c.line, 2)
	if field == "image" {
		if url := attachmentURL(c.msg.Message); url != "" {
			value = url
		}
	}
	if err := h.db.UpdateCharacterField(ctx, char.ID, field, value); err != nil {
		return err
	}
	if char, err = h.db.Character(ctx, char.ID); err != nil {
		return err
	}
	h.refresh(ctx, char, field == "image")
	h.reply(ctx, c.msg, "Character updated!")
	return nil
}

func (h *BotHandler) cmdView(ctx context.Context, c *call) error {
	if len(c.args) < 1 {
		return userError("Usage: %sview <id>", h.cfg.CommandPrefix)
	}
	id, err := parseID(c.arg(0))
	if err != nil {
		return err
	}
	char, err := h.db.Character(ctx, id)
	if err != nil {
		return err
	}
	sheet := proxy.BuildSheet(char, h.avatarURL(char.ID))
	_, err = h.session.ChannelMessageSendEmbed(c.msg.ChannelID, sheetEmbed(sheet), discordgo.WithContext(ctx))
	return err
}

func (h *BotHandler) cmdList(ctx context.Context, c *call) error {
	chars, err := h.db.CharactersByOwner(ctx, c.author())
	if err != nil {
		return err
	}
	if len(chars) == 0 {
		return userError("You have no characters!")
	}
	return h.sendEmbeds(ctx, c.msg.ChannelID, listEmbeds("Your Characters", chars))
}

func (h *BotHandler) sendEmbeds(ctx context.Context, channelID string, embeds []*discordgo.MessageEmbed) error {
	for _, batch := range batches(embeds) {
		if _, err := h.session.ChannelMessageSendEmbeds(channelID, batch, discordgo.WithContext(ctx)); err != nil {
			return err
		}
	}
	return nil
}

// prefixArgs reads the id and prefix arguments, asking for the ones that
// are missing.
func (h *BotHandler) prefixArgs(ctx context.Context, c *call) (*models.Character, string, error) {
	rawID := c.arg(0)
	if rawID == "" {
		answer, err := h.ask(ctx, c.msg, "Enter character id:")
		if err != nil {
			return nil, "", err
		}
		rawID = answer.Content
	}
	char, err := h.ownedCharacter(ctx, rawID, c.author())
	if err != nil {
		return nil, "", err
	}

	prefix := restAfter(c.line, 1)
	if prefix == "" {
		answer, err := h.ask(ctx, c.msg, "Enter prefix:")
		if err != nil {
			return nil, "", err
		}
		prefix = answer.Content
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, "", userError("A prefix cannot be empty.")
	}
	return char, prefix, nil
}

func (h *BotHandler) cmdAddPrefix(ctx context.Context, c *call) error {
	char, prefix, err := h.prefixArgs(ctx, c)
	if err != nil {
		return err
	}
	if _, err := h.db.AddPrefix(ctx, char.ID, prefix); err != nil {
		return err
	}
	h.reply(ctx, c.msg, "Prefix added!")
	return nil
}

func (h *BotHandler) cmdRemovePrefix(ctx context.Context, c *call) error {
	char, prefix, err := h.prefixArgs(ctx, c)
	if err != nil {
		return err
	}
	err = h.db.RemovePrefix(ctx, char.ID, prefix)
	if errors.Is(err, apperr.ErrNotFound) {
		return userError("Prefix not found!")
	}
	if err != nil {
		return err
	}
	h.reply(ctx, c.msg, "Prefix removed!")
	return nil
}

// proxyTarget resolves the prefix argument of proxy and unproxy to one of
// the author's characters, and the location the command was sent in.
func (h *BotHandler) proxyTarget(ctx context.Context, c *call) (*models.Character, proxy.Location, error) {
	if c.line == "" {
		return nil, proxy.Location{}, userError("Usage: %sproxy <prefix>", h.cfg.CommandPrefix)
	}
	char, _, err := h.dispatcher.Prefixes().Resolve(ctx, c.line, c.author())
	if err != nil {
		return nil, proxy.Location{}, err
	}
	if char == nil {
		return nil, proxy.Location{}, apperr.ErrNotFound
	}
	loc, err := h.platform.Locate(ctx, c.msg.ChannelID)
	if err != nil {
		return nil, proxy.Location{}, err
	}
	return char, loc, nil
}

func (h *BotHandler) cmdProxy(ctx context.Context, c *call) error {
	char, loc, err := h.proxyTarget(ctx, c)
	if err != nil {
		return err
	}
	current, err := h.dispatcher.Bindings().Resolve(ctx, c.author(), loc)
	if err != nil {
		return err
	}
	if current != nil && current.ID != char.ID {
		h.notice(ctx, c.msg.ChannelID, fmt.Sprintf("You are already proxied in this channel as %s! Replacing it.", current.Name))
	}
	if err := h.dispatcher.Bindings().Bind(ctx, c.author(), char.ID, loc); err != nil {
		return err
	}
	h.notice(ctx, c.msg.ChannelID, "Character proxied!")
	return nil
}

func (h *BotHandler) cmdUnproxy(ctx context.Context, c *call) error {
	char, loc, err := h.proxyTarget(ctx, c)
	if err != nil {
		return err
	}
	err = h.dispatcher.Bindings().Unbind(ctx, c.author(), char.ID, loc)
	if errors.Is(err, apperr.ErrNotFound) {
		h.notice(ctx, c.msg.ChannelID, "You are not proxied as this character here!")
		return nil
	}
	if err != nil {
		return err
	}
	h.notice(ctx, c.msg.ChannelID, "Character unproxied!")
	return nil
}

func (h *BotHandler) cmdHelp(ctx context.Context, c *call) error {
	h.reply(ctx, c.msg, proxy.HelpText(h.cfg.CommandPrefix))
	return nil
}

func (h *BotHandler) cmdFind(ctx context.Context, c *call) error {
	if h.search == nil {
		return userError("Search is not enabled.")
	}
	if c.line == "" {
		return userError("Usage: %sfind <text>", h.cfg.CommandPrefix)
	}
	chars, err := h.search.Search(ctx, c.line, searchLimit)
	if err != nil {
		return err
	}
	if len(chars) == 0 {
		return userError("No matching characters.")
	}
	return h.sendEmbeds(ctx, c.msg.ChannelID, listEmbeds("Matching Characters", chars))
}

func (h *BotHandler) cmdWhitelistChannel(ctx context.Context, c *call) error {
	return h.setPolicy(ctx, c, models.KindText, true)
}

func (h *BotHandler) cmdBlacklistChannel(ctx context.Context, c *call) error {
	return h.setPolicy(ctx, c, models.KindText, false)
}

func (h *BotHandler) cmdWhitelistCategory(ctx context.Context, c *call) error {
	return h.setPolicy(ctx, c, models.KindCategory, true)
}

func (h *BotHandler) cmdBlacklistCategory(ctx context.Context, c *call) error {
	return h.setPolicy(ctx, c, models.KindCategory, false)
}

func (h *BotHandler) setPolicy(ctx context.Context, c *call, kind models.ChannelKind, whitelisted bool) error {
	label := "Channel"
	if kind == models.KindCategory {
		label = "Category"
	}
	id := parseChannelRef(c.arg(0))
	if id == "" {
		if whitelisted {
			return userError("Usage: %s%s <#channel or id> [cooldown]", h.cfg.CommandPrefix, c.name)
		}
		return userError("Usage: %s%s <#channel or id>", h.cfg.CommandPrefix, c.name)
	}
	cooldown := 0
	if whitelisted && c.arg(1) != "" {
		n, err := strconv.Atoi(c.arg(1))
		if err != nil || n < 0 {
			return userError("Cooldown must be a whole number of seconds.")
		}
		cooldown = n
	}

	current, err := h.db.ChannelPolicy(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
	case err != nil:
		return err
	case current.Whitelisted == whitelisted && current.Cooldown == cooldown && current.Kind == kind:
		if whitelisted {
			return userError("%s already whitelisted!", label)
		}
		return userError("%s already blacklisted!", label)
	}

	err = h.db.SetChannelPolicy(ctx, &models.ChannelPolicy{
		ID:          id,
		Whitelisted: whitelisted,
		Cooldown:    cooldown,
		Kind:        kind,
	})
	if err != nil {
		return err
	}
	if whitelisted {
		h.reply(ctx, c.msg, label+" whitelisted!")
	} else {
		h.reply(ctx, c.msg, label+" blacklisted!")
	}
	return nil
}
