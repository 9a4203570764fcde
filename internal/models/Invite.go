package models

import "livechat-client/internal/types"

const DefaultColorPref = "random"

type Invite struct {
	InviteID  string
	From      string
	BaseMs    int64
	IncMs     int64
	ColorPref string
}

func InviteFromEvent(ev types.MatchInviteEvent) Invite {
	color := ev.ColorPref
	if color == "" {
		color = DefaultColorPref
	}
	return Invite{
		InviteID:  ev.InviteID,
		From:      ev.From,
		BaseMs:    ev.BaseMs,
		IncMs:     ev.IncMs,
		ColorPref: color,
	}
}
