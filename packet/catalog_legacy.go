package packet

import "strconv"

// MapEditorXML is legacy id (14, 10), serverbound: the map XML submitted
// from the in-game map editor.
type MapEditorXML struct {
	Base
	XML string
}

func (p *MapEditorXML) LegacyID() TopLevelID { return TopLevelID{14, 10} }

func (p *MapEditorXML) BodyComponents(ctx *Ctx) ([]string, error) {
	return []string{p.XML}, nil
}

func unpackMapEditorXML(components []string, ctx *Ctx) (LegacyPacket, error) {
	xml := ""
	if len(components) > 0 {
		xml = components[0]
	}
	return &MapEditorXML{XML: xml}, nil
}

// ReturnToMapEditor is legacy id (14, 14), serverbound, no body.
type ReturnToMapEditor struct{ Base }

func (p *ReturnToMapEditor) LegacyID() TopLevelID { return TopLevelID{14, 14} }
func (p *ReturnToMapEditor) BodyComponents(ctx *Ctx) ([]string, error) {
	return nil, nil
}

func unpackReturnToMapEditor(components []string, ctx *Ctx) (LegacyPacket, error) {
	return &ReturnToMapEditor{}, nil
}

// RemoveExplodedObject is legacy id (4, 6), clientbound.
type RemoveExplodedObject struct {
	Base
	ObjectID int
}

func (p *RemoveExplodedObject) LegacyID() TopLevelID { return TopLevelID{4, 6} }

func (p *RemoveExplodedObject) BodyComponents(ctx *Ctx) ([]string, error) {
	return []string{strconv.Itoa(p.ObjectID)}, nil
}

func unpackRemoveExplodedObject(components []string, ctx *Ctx) (LegacyPacket, error) {
	if len(components) < 1 {
		return nil, ErrSchema
	}
	id, err := strconv.Atoi(components[0])
	if err != nil {
		return nil, err
	}
	return &RemoveExplodedObject{ObjectID: id}, nil
}

// SyncExplosion is legacy id (5, 17), clientbound: replays an explosion's
// physics effects for a newly-joined or resynced client.
type SyncExplosion struct {
	Base
	X, Y          int
	Power, Radius int
	AffectObjects bool
	Particles     int
}

func (p *SyncExplosion) LegacyID() TopLevelID { return TopLevelID{5, 17} }

func (p *SyncExplosion) BodyComponents(ctx *Ctx) ([]string, error) {
	affect := "0"
	if p.AffectObjects {
		affect = "1"
	}
	return []string{
		strconv.Itoa(p.X),
		strconv.Itoa(p.Y),
		strconv.Itoa(p.Power),
		strconv.Itoa(p.Radius),
		affect,
		strconv.Itoa(p.Particles),
	}, nil
}

func unpackSyncExplosion(components []string, ctx *Ctx) (LegacyPacket, error) {
	if len(components) < 6 {
		return nil, ErrSchema
	}
	atoi := func(s string) (int, error) { return strconv.Atoi(s) }
	x, err := atoi(components[0])
	if err != nil {
		return nil, err
	}
	y, err := atoi(components[1])
	if err != nil {
		return nil, err
	}
	power, err := atoi(components[2])
	if err != nil {
		return nil, err
	}
	radius, err := atoi(components[3])
	if err != nil {
		return nil, err
	}
	particles, err := atoi(components[5])
	if err != nil {
		return nil, err
	}
	return &SyncExplosion{
		X: x, Y: y,
		Power: power, Radius: radius,
		AffectObjects: components[4] == "1",
		Particles:     particles,
	}, nil
}

func init() {
	RegisterLegacy(Serverbound, TopLevelID{14, 10}, "MapEditorXML", unpackMapEditorXML)
	RegisterLegacy(Serverbound, TopLevelID{14, 14}, "ReturnToMapEditor", unpackReturnToMapEditor)
	RegisterLegacy(Clientbound, TopLevelID{4, 6}, "RemoveExplodedObject", unpackRemoveExplodedObject)
	RegisterLegacy(Clientbound, TopLevelID{5, 17}, "SyncExplosion", unpackSyncExplosion)
}
