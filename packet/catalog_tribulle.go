package packet

import "gotice/wire"

func readSignedString(r *wire.Reader) (string, error) {
	value, _, err := wire.ReadSignedLengthString(r)
	return value, err
}

func writeSignedString(w *wire.Writer, s string) {
	wire.WriteSignedLengthString(w, s, true)
}

// TribeInviteRequest is tribulle id 78, serverbound: invite a player to the
// sender's tribe.
type TribeInviteRequest struct {
	Base
	Target string
}

func (p *TribeInviteRequest) TribulleID() int16 { return 78 }

func (p *TribeInviteRequest) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	writeStringField(w, p.Target)
	return w.Bytes(), nil
}

func unpackTribeInviteRequest(body []byte, ctx *Ctx) (TribullePacket, error) {
	r := wire.NewReader(body)
	target, err := readStringField(r)
	if err != nil {
		return nil, err
	}
	return &TribeInviteRequest{Target: target}, nil
}

// AnswerTribeInviteRequest is tribulle id 80, serverbound.
type AnswerTribeInviteRequest struct {
	Base
	Inviter  string
	Accepted bool
}

func (p *AnswerTribeInviteRequest) TribulleID() int16 { return 80 }

func (p *AnswerTribeInviteRequest) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	writeStringField(w, p.Inviter)
	wire.WriteU8(w, boolToByte(p.Accepted))
	return w.Bytes(), nil
}

func unpackAnswerTribeInviteRequest(body []byte, ctx *Ctx) (TribullePacket, error) {
	r := wire.NewReader(body)
	inviter, err := readStringField(r)
	if err != nil {
		return nil, err
	}
	accepted, err := wire.ReadU8(r)
	if err != nil {
		return nil, err
	}
	return &AnswerTribeInviteRequest{Inviter: inviter, Accepted: accepted != 0}, nil
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Whisper is tribulle id 66, clientbound: a private message relayed through
// the community platform.
type Whisper struct {
	Base
	Sender    string
	Community int32
	Receiver  string
	Message   string
}

func (p *Whisper) TribulleID() int16 { return 66 }

func (p *Whisper) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	writeSignedString(w, p.Sender)
	wire.WriteI32(w, p.Community)
	writeSignedString(w, p.Receiver)
	writeSignedString(w, p.Message)
	return w.Bytes(), nil
}

func unpackWhisper(body []byte, ctx *Ctx) (TribullePacket, error) {
	r := wire.NewReader(body)
	p := &Whisper{}
	var err error
	if p.Sender, err = readSignedString(r); err != nil {
		return nil, err
	}
	if p.Community, err = wire.ReadI32(r); err != nil {
		return nil, err
	}
	if p.Receiver, err = readSignedString(r); err != nil {
		return nil, err
	}
	if p.Message, err = readSignedString(r); err != nil {
		return nil, err
	}
	return p, nil
}

// TribeInvite is tribulle id 86, clientbound: the invite notification
// delivered to the invitee.
type TribeInvite struct {
	Base
	Inviter    string
	TribeName  string
}

func (p *TribeInvite) TribulleID() int16 { return 86 }

func (p *TribeInvite) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	writeSignedString(w, p.Inviter)
	writeSignedString(w, p.TribeName)
	return w.Bytes(), nil
}

func unpackTribeInvite(body []byte, ctx *Ctx) (TribullePacket, error) {
	r := wire.NewReader(body)
	p := &TribeInvite{}
	var err error
	if p.Inviter, err = readSignedString(r); err != nil {
		return nil, err
	}
	if p.TribeName, err = readSignedString(r); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateTribeResult is tribulle id 85, clientbound.
type CreateTribeResult struct {
	Base
	Result uint8
}

func (p *CreateTribeResult) TribulleID() int16 { return 85 }

func (p *CreateTribeResult) PackBody(ctx *Ctx) ([]byte, error) {
	w := wire.NewWriter()
	wire.WriteU8(w, p.Result)
	return w.Bytes(), nil
}

func unpackCreateTribeResult(body []byte, ctx *Ctx) (TribullePacket, error) {
	r := wire.NewReader(body)
	result, err := wire.ReadU8(r)
	if err != nil {
		return nil, err
	}
	return &CreateTribeResult{Result: result}, nil
}

func init() {
	RegisterTribulle(Serverbound, 78, "TribeInviteRequest", unpackTribeInviteRequest)
	RegisterTribulle(Serverbound, 80, "AnswerTribeInviteRequest", unpackAnswerTribeInviteRequest)
	RegisterTribulle(Clientbound, 66, "Whisper", unpackWhisper)
	RegisterTribulle(Clientbound, 86, "TribeInvite", unpackTribeInvite)
	RegisterTribulle(Clientbound, 85, "CreateTribeResult", unpackCreateTribeResult)
}
