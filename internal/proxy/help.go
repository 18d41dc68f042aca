package proxy

import "strings"

const helpTemplate = "```" + `
Command Reference
-----------------

Character Management:
    {p}create - Interactive prompt to create a character. Each answer times out after a while, in which case you will have to restart the command.
    {p}create <name> [image] [info] - Create a character in one go. An attached image replaces the image argument.
    {p}delete <id> - Delete a character. You must own the character.
    {p}edit <id> <field> <value> - Edit a character. Fields: name, pronouns, race, classes, description, demeanor, info, image, wiki. You must own the character.

    {p}add_prefix <id> <prefix> - Add a prefix to a character. Sending "<prefix><message>" in a whitelisted channel speaks as the character.
    {p}remove_prefix <id> <prefix> - Remove a prefix from a character. You must own the character.

    {p}list - List your characters and their ids.
    {p}view <id> - View a character's information.
    {p}find <text> - Find characters matching a description, when search is enabled.

    {p}proxy <prefix> - Speak as the character in this channel or thread without a prefix. Start a message with '[' to skip proxying for that message.
    {p}unproxy <prefix> - Stop proxying as the character in this channel or thread.

Reactions:
    ` + SymbolDelete + ` - Delete a proxied message. You must own the character.
    ` + SymbolEdit + ` - Edit a proxied message. You must own the character.
    ` + SymbolInfo + ` - View the character's information.
    ` + SymbolHelp + ` - View this help message.
` + "```"

// HelpText returns the command reference for the given command prefix.
func HelpText(commandPrefix string) string {
	return strings.ReplaceAll(helpTemplate, "{p}", commandPrefix)
}
