// Package ircerr gives the numeric-reply taxonomy of spec.md §7 a
// concrete Go type, so handlers compare against sentinel values instead
// of formatting a string and hoping the caller matches it.
package ircerr

import "github.com/fenag/yaIRCd-sub000/internal/ircnum"

// Error pairs a numeric reply code with the human-readable text that
// follows it on the wire.
type Error struct {
	Code string
	Text string
}

func (e *Error) Error() string { return e.Code + " " + e.Text }

func New(code, text string) *Error { return &Error{Code: code, Text: text} }

var (
	ErrNoSuchNick       = New(ircnum.ERR_NOSUCHNICK, "No such nick/channel")
	ErrNoSuchChannel    = New(ircnum.ERR_NOSUCHCHANNEL, "No such channel")
	ErrNoRecipient      = New(ircnum.ERR_NORECIPIENT, "No recipient given")
	ErrNoTextToSend     = New(ircnum.ERR_NOTEXTTOSEND, "No text to send")
	ErrUnknownCommand   = New(ircnum.ERR_UNKNOWNCOMMAND, "Unknown command")
	ErrNoNicknameGiven  = New(ircnum.ERR_NONICKNAMEGIVEN, "No nickname given")
	ErrErroneusNickname = New(ircnum.ERR_ERRONEUSNICKNAME, "Erroneous nickname")
	ErrNicknameInUse    = New(ircnum.ERR_NICKNAMEINUSE, "Nickname is already in use")
	ErrUserOnChannel    = New(ircnum.ERR_USERONCHANNEL, "is already on channel")
	ErrNotOnChannel     = New(ircnum.ERR_NOTONCHANNEL, "You're not on that channel")
	ErrNotRegistered    = New(ircnum.ERR_NOTREGISTERED, "You have not registered")
	ErrNeedMoreParams   = New(ircnum.ERR_NEEDMOREPARAMS, "Not enough parameters")
	ErrAlreadyRegistred = New(ircnum.ERR_ALREADYREGISTRED, "You may not reregister")
	ErrNoOrigin         = New(ircnum.ERR_NOORIGIN, "No origin specified")
	ErrTooManyChannels  = New(ircnum.ERR_TOOMANYCHANNELS, "You have joined too many channels")
)
