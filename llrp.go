// Package llrp is the library's single exported entry point (spec §4.9): a
// schema-driven codec for the Low Level Reader Protocol. Construct a Codec
// from a loaded schema document, then use it to build, validate, pack and
// unpack LLRP messages and parameters.
package llrp

import (
	"context"
	"io"
	"strings"

	"github.com/kulaginds/llrp/internal/config"
	"github.com/kulaginds/llrp/internal/llrp/instance"
	"github.com/kulaginds/llrp/internal/llrp/llrperr"
	"github.com/kulaginds/llrp/internal/llrp/message"
	"github.com/kulaginds/llrp/internal/llrp/param"
	"github.com/kulaginds/llrp/internal/llrp/registry"
	"github.com/kulaginds/llrp/internal/llrp/schema"
	"github.com/kulaginds/llrp/internal/llrp/transport"
	"github.com/kulaginds/llrp/internal/llrp/validate"
	"github.com/kulaginds/llrp/internal/llrp/wire"
	"github.com/kulaginds/llrp/internal/logging"
)

// Re-exported error types (spec §7), so callers can errors.As against a
// specific kind without importing an internal package.
type (
	SchemaError      = llrperr.SchemaError
	ValidationError  = llrperr.ValidationError
	DecodeError      = llrperr.DecodeError
	EncodeError      = llrperr.EncodeError
	ConnectionBroken = llrperr.ConnectionBroken
)

// Instance is a runtime parameter or message tree node (spec §3.1).
type Instance = instance.Instance

// Codec owns the descriptor tables produced by the Schema Loader and is the
// library's single exported entry point (spec §4.9).
type Codec struct {
	reg *registry.Registry
	cfg *config.Config
}

// NewCodec loads schemaDoc into descriptor tables and returns a ready Codec.
// Socket Framing's maximum message size and zero-length-read budget (spec
// §4.8, §5) come from internal/config, loaded once here and reused by every
// UnpackMessageFromSocket call. The configured read timeout is not applied
// to the reader.
func NewCodec(schemaDoc *schema.Document) (*Codec, error) {
	tables, err := schemaDoc.Build()
	if err != nil {
		return nil, err
	}
	logging.Debug("llrp: schema loaded: %d parameters, %d messages, %d enums",
		len(tables.Parameters)+len(tables.ParameterVariants),
		len(tables.Messages)+len(tables.MessageVariants),
		len(tables.Enums))

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.SetLevelFromString(cfg.Logging.Level)

	return &Codec{reg: registry.New(tables), cfg: cfg}, nil
}

// NewMessage builds a fresh message Instance by class name (e.g.
// "ADD_ROSPEC"), applying the one-positional-arg-or-by-name construction
// rule (spec §4.6).
func (c *Codec) NewMessage(name string, args ...any) (*Instance, error) {
	desc, ok := c.reg.LookupMessageByName(name + "_Message")
	if !ok {
		return nil, llrperr.NewEncodeError("NewMessage", "unknown message %q", name)
	}
	return message.New(desc, nil, args...)
}

// NewParameter builds a fresh parameter Instance by class name (e.g.
// "ROSpec"), applying the one-positional-arg-or-by-name construction rule.
func (c *Codec) NewParameter(name string, args ...any) (*Instance, error) {
	desc, ok := c.reg.LookupParameterByName(name + "_Parameter")
	if !ok {
		return nil, llrperr.NewEncodeError("NewParameter", "unknown parameter %q", name)
	}
	return param.New(desc, args...)
}

// PackMessage validates m and serializes it to wire bytes (spec §4.6).
func (c *Codec) PackMessage(m *Instance) ([]byte, error) {
	if err := validate.Instance(c.reg, m); err != nil {
		return nil, err
	}
	w := wire.NewBitWriter()
	if err := message.Pack(w, m); err != nil {
		return nil, err
	}
	return w.Bytes()
}

// UnpackMessage decodes a complete message frame (spec §4.6).
func (c *Codec) UnpackMessage(b []byte) (*Instance, error) {
	return message.Unpack(c.reg, b)
}

// UnpackParameter decodes one parameter from b, returning it alongside the
// number of bytes consumed (spec §4.5).
func (c *Codec) UnpackParameter(b []byte) (*Instance, int, error) {
	r := wire.NewBitReader(b)
	return param.Unpack(c.reg, r)
}

// UnpackMessageFromSocket blocks until a complete message frame has arrived
// on r, then decodes it (spec §4.8). The maximum declared message size and
// the consecutive-zero-read budget come from the Codec's loaded
// configuration (internal/config).
func (c *Codec) UnpackMessageFromSocket(r io.Reader) (*Instance, error) {
	fr := transport.NewFrameReader(r, c.cfg.Transport.MaxMessageBytes, c.cfg.Transport.ZeroReadChunkLimit)
	frame, err := fr.ReadMessage()
	if err != nil {
		return nil, err
	}
	return c.UnpackMessage(frame)
}

// WaitForMessage repeatedly reads messages from r until one with the given
// id arrives, forwarding every other message to onOther if it is non-nil.
// ctx is checked between successive reads, not during an in-flight blocking
// read (spec §5, §4.9).
func (c *Codec) WaitForMessage(ctx context.Context, id uint32, r io.Reader, onOther func(*Instance)) (*Instance, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		inst, err := c.UnpackMessageFromSocket(r)
		if err != nil {
			return nil, err
		}
		if inst.MessageID != nil && *inst.MessageID == id {
			return inst, nil
		}
		if onOther != nil {
			onOther(inst)
		}
	}
}

// GetResponseClassName maps a message class name to its conventional
// response class name: trailing "_Message" is replaced with
// "_RESPONSE_Message", except CUSTOM_MESSAGE_Message, which is its own
// response (spec §6.3). messageName may be given with or without the
// "_Message" suffix; the suffix is normalized on the way out.
func (c *Codec) GetResponseClassName(messageName string) string {
	base := strings.TrimSuffix(messageName, "_Message")
	if base == "CUSTOM_MESSAGE" {
		return "CUSTOM_MESSAGE_Message"
	}
	return base + "_RESPONSE_Message"
}

// VendorName reverse-looks-up a vendor code to its declared name, falling
// back to the decimal code (supplemented feature, spec §9.1).
func (c *Codec) VendorName(code uint32) string {
	return c.reg.VendorName(code)
}

// DefaultAddROSpecMessage assembles the canonical ADD_ROSPEC message from
// spec §6.3: a single ROSpec with Null start/stop triggers, one AISpec
// covering the given antennas with one inventory parameter spec, and an
// ROReportSpec whose content selector enables antenna id, peak RSSI,
// first-seen timestamp and tag seen count.
func (c *Codec) DefaultAddROSpecMessage(messageID uint32, roSpecID, inventoryParameterSpecID uint32, antennaIDs []uint32) (*Instance, error) {
	startTrigger, err := c.NewParameter("ROSpecStartTrigger", map[string]any{
		"ROSpecStartTriggerType": int64(0), // Null
	})
	if err != nil {
		return nil, err
	}
	stopTrigger, err := c.NewParameter("ROSpecStopTrigger", map[string]any{
		"ROSpecStopTriggerType": int64(0), // Null
		"DurationTriggerValue":  int64(0),
	})
	if err != nil {
		return nil, err
	}
	boundarySpec, err := c.NewParameter("ROBoundarySpec")
	if err != nil {
		return nil, err
	}
	boundarySpec.AddChild(startTrigger)
	boundarySpec.AddChild(stopTrigger)

	antennaArray := make([]int64, len(antennaIDs))
	for i, a := range antennaIDs {
		antennaArray[i] = int64(a)
	}

	aiStopTrigger, err := c.NewParameter("AISpecStopTrigger", map[string]any{
		"AISpecStopTriggerType": int64(0), // Null
		"DurationTrigger":       int64(0),
	})
	if err != nil {
		return nil, err
	}

	invReportSpec, err := c.NewParameter("ROReportSpec", map[string]any{
		"ROReportTrigger": int64(1), // Upon_N_Tags_Or_End_Of_ROSpec
		"N":               int64(1),
	})
	if err != nil {
		return nil, err
	}
	contentSelector, err := c.NewParameter("TagReportContentSelector", map[string]any{
		"EnableROSpecID":           false,
		"EnableSpecIndex":          false,
		"EnableInventoryParameterSpecID": false,
		"EnableAntennaID":          true,
		"EnableChannelIndex":       false,
		"EnablePeakRSSI":           true,
		"EnableFirstSeenTimestamp": true,
		"EnableLastSeenTimestamp":  false,
		"EnableTagSeenCount":       true,
		"EnableAccessSpecID":       false,
	})
	if err != nil {
		return nil, err
	}
	invReportSpec.AddChild(contentSelector)

	invParamSpec, err := c.NewParameter("InventoryParameterSpec", map[string]any{
		"InventoryParameterSpecID": int64(inventoryParameterSpecID),
		"ProtocolID":               int64(1), // EPCGlobalClass1Gen2
	})
	if err != nil {
		return nil, err
	}

	aiSpec, err := c.NewParameter("AISpec", map[string]any{
		"AntennaIDs": antennaArray,
	})
	if err != nil {
		return nil, err
	}
	aiSpec.AddChild(aiStopTrigger)
	aiSpec.AddChild(invParamSpec)

	roSpec, err := c.NewParameter("ROSpec", map[string]any{
		"ROSpecID":        int64(roSpecID),
		"Priority":        int64(0),
		"CurrentState":    int64(0), // Disabled
	})
	if err != nil {
		return nil, err
	}
	roSpec.AddChild(boundarySpec)
	roSpec.AddChild(aiSpec)
	roSpec.AddChild(invReportSpec)

	msgDesc, ok := c.reg.LookupMessageByName("ADD_ROSPEC_Message")
	if !ok {
		return nil, llrperr.NewEncodeError("DefaultAddROSpecMessage", "unknown message %q", "ADD_ROSPEC")
	}
	id := messageID
	msg, err := message.New(msgDesc, &id)
	if err != nil {
		return nil, err
	}
	msg.AddChild(roSpec)
	return msg, nil
}

// TagReport is the result of extracting a tag observation from a
// RO_ACCESS_REPORT (supplemented feature, spec §9.1). Each field stays
// zero-valued if its source parameter was absent from the tag report data.
// EPC is set only from an "EPC" field holding raw bytes (EPCData or EPC_96);
// an EPC_96 whose value is carried in integer fields leaves EPC nil.
type TagReport struct {
	EPC                   []byte
	AntennaID             uint16
	PeakRSSI              int8
	SeenCount             uint16
	FirstSeenTimestampUTC uint64
}

// ExtractTagReports folds every TagReportData child of roAccessReport into a
// TagReport, reading whichever well-known child parameters are present
// (grounded in pyllrp's module-level `actions` table and
// RO_ACCESS_REPORT_Message.getTagData).
func (c *Codec) ExtractTagReports(roAccessReport *Instance) []TagReport {
	var reports []TagReport
	for tagData := range roAccessReport.AllParametersByName("TagReportData_Parameter") {
		var tr TagReport

		if epc := tagData.FirstParameterByName("EPCData_Parameter"); epc != nil {
			if b, ok := epc.Get("EPC").([]byte); ok {
				tr.EPC = b
			}
		} else if epc96 := tagData.FirstParameterByName("EPC_96_Parameter"); epc96 != nil {
			if b, ok := epc96.Get("EPC").([]byte); ok {
				tr.EPC = b
			}
		}
		if antenna := tagData.FirstParameterByName("AntennaID_Parameter"); antenna != nil {
			if v, ok := antenna.Get("AntennaID").(int64); ok {
				tr.AntennaID = uint16(v)
			}
		}
		if rssi := tagData.FirstParameterByName("PeakRSSI_Parameter"); rssi != nil {
			if v, ok := rssi.Get("PeakRSSI").(int64); ok {
				tr.PeakRSSI = int8(v)
			}
		}
		if seen := tagData.FirstParameterByName("TagSeenCount_Parameter"); seen != nil {
			if v, ok := seen.Get("TagCount").(int64); ok {
				tr.SeenCount = uint16(v)
			}
		}
		if first := tagData.FirstParameterByName("FirstSeenTimestampUTC_Parameter"); first != nil {
			if v, ok := first.Get("Microseconds").(int64); ok {
				tr.FirstSeenTimestampUTC = uint64(v)
			}
		}

		reports = append(reports, tr)
	}
	return reports
}
