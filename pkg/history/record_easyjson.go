// ABOUTME: easyjson marshalers for the persisted record (zero-reflection encode/decode)
// ABOUTME: A blake3 checksum spans the raw states and branches sections of the document

package history

import (
	"encoding/hex"
	"slices"
	"sort"
	"time"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"lukechampine.com/blake3"
)

func recordChecksum(states, branches []byte) string {
	h := blake3.New(32, nil)
	h.Write(states)
	h.Write([]byte{'\n'})
	h.Write(branches)
	return hex.EncodeToString(h.Sum(nil))
}

// MarshalEasyJSON writes the record. The checksum is always recomputed.
func (r record) MarshalEasyJSON(out *jwriter.Writer) {
	var sw jwriter.Writer
	encodeStateRecords(&sw, r.States)
	states, err := sw.BuildBytes()
	if err != nil {
		out.Error = err
		return
	}
	var bw jwriter.Writer
	encodeBranchRecords(&bw, r.Branches)
	branches, err := bw.BuildBytes()
	if err != nil {
		out.Error = err
		return
	}

	out.RawString(`{"version":`)
	out.Int(r.Version)
	out.RawString(`,"codec":`)
	out.String(r.Codec)
	out.RawString(`,"checksum":`)
	out.String(recordChecksum(states, branches))
	out.RawString(`,"states":`)
	out.Raw(states, nil)
	out.RawString(`,"branches":`)
	out.Raw(branches, nil)
	out.RawString(`,"currentStateId":`)
	out.Uint64(r.CurrentStateID)
	out.RawString(`,"activeBranchId":`)
	out.String(r.ActiveBranchID)
	out.RawString(`,"nextStateId":`)
	out.Uint64(r.NextStateID)
	out.RawByte('}')
}

// UnmarshalEasyJSON reads the record and verifies its checksum when present.
func (r *record) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}

	var rawStates, rawBranches []byte
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "version":
			r.Version = in.Int()
		case "codec":
			r.Codec = in.String()
		case "checksum":
			r.Checksum = in.String()
		case "states":
			rawStates = slices.Clone(in.Raw())
		case "branches":
			rawBranches = slices.Clone(in.Raw())
		case "currentStateId":
			r.CurrentStateID = in.Uint64()
		case "activeBranchId":
			r.ActiveBranchID = in.String()
		case "nextStateId":
			r.NextStateID = in.Uint64()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
	if !in.Ok() {
		return
	}

	if r.Checksum != "" && r.Checksum != recordChecksum(rawStates, rawBranches) {
		in.AddError(ErrChecksumMismatch)
		return
	}
	if rawStates != nil {
		sub := jlexer.Lexer{Data: rawStates}
		r.States = decodeStateRecords(&sub)
		if err := sub.Error(); err != nil {
			in.AddError(err)
			return
		}
	}
	if rawBranches != nil {
		sub := jlexer.Lexer{Data: rawBranches}
		r.Branches = decodeBranchRecords(&sub)
		if err := sub.Error(); err != nil {
			in.AddError(err)
		}
	}
}

func encodeStateRecords(out *jwriter.Writer, states []stateRecord) {
	out.RawByte('[')
	for i, s := range states {
		if i > 0 {
			out.RawByte(',')
		}
		s.encode(out)
	}
	out.RawByte(']')
}

func (s stateRecord) encode(out *jwriter.Writer) {
	out.RawString(`{"id":`)
	out.Uint64(s.ID)
	out.RawString(`,"parentId":`)
	out.Uint64(s.ParentID)
	out.RawString(`,"branchId":`)
	out.String(s.BranchID)
	out.RawString(`,"timestamp":`)
	out.String(s.Timestamp.UTC().Format(time.RFC3339Nano))
	out.RawString(`,"name":`)
	out.String(s.Name)
	if s.Description != "" {
		out.RawString(`,"description":`)
		out.String(s.Description)
	}
	out.RawString(`,"metadata":`)
	s.Metadata.encode(out)
	if s.Thumbnail != "" {
		out.RawString(`,"thumbnail":`)
		out.String(s.Thumbnail)
	}
	if s.Metadata.Compressed {
		out.RawString(`,"packed":`)
		out.Base64Bytes(s.Packed)
	} else {
		out.RawString(`,"data":`)
		out.Raw(s.Data, nil)
	}
	out.RawByte('}')
}

func (m metadataRecord) encode(out *jwriter.Writer) {
	out.RawString(`{"memoryUsage":`)
	out.Int64(m.MemoryUsage)
	out.RawString(`,"compressed":`)
	out.Bool(m.Compressed)
	if m.Tool != "" {
		out.RawString(`,"tool":`)
		out.String(m.Tool)
	}
	if m.LayerID != "" {
		out.RawString(`,"layerId":`)
		out.String(m.LayerID)
	}
	if len(m.Attrs) > 0 {
		keys := make([]string, 0, len(m.Attrs))
		for k := range m.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out.RawString(`,"attrs":{`)
		for i, k := range keys {
			if i > 0 {
				out.RawByte(',')
			}
			out.String(k)
			out.RawByte(':')
			out.String(m.Attrs[k])
		}
		out.RawByte('}')
	}
	out.RawByte('}')
}

func encodeBranchRecords(out *jwriter.Writer, branches []branchRecord) {
	out.RawByte('[')
	for i, b := range branches {
		if i > 0 {
			out.RawByte(',')
		}
		out.RawString(`{"id":`)
		out.String(b.ID)
		out.RawString(`,"name":`)
		out.String(b.Name)
		out.RawString(`,"parentStateId":`)
		out.Uint64(b.ParentStateID)
		out.RawString(`,"createdAt":`)
		out.String(b.CreatedAt.UTC().Format(time.RFC3339Nano))
		out.RawString(`,"stateIds":[`)
		for j, id := range b.StateIDs {
			if j > 0 {
				out.RawByte(',')
			}
			out.Uint64(id)
		}
		out.RawString(`],"isActive":`)
		out.Bool(b.Active)
		out.RawByte('}')
	}
	out.RawByte(']')
}

func decodeTime(in *jlexer.Lexer) time.Time {
	s := in.String()
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		in.AddError(err)
		return time.Time{}
	}
	return t
}

func decodeStateRecords(in *jlexer.Lexer) []stateRecord {
	if in.IsNull() {
		in.Skip()
		return nil
	}
	out := []stateRecord{}
	in.Delim('[')
	for !in.IsDelim(']') {
		var s stateRecord
		s.decode(in)
		out = append(out, s)
		in.WantComma()
	}
	in.Delim(']')
	return out
}

func (s *stateRecord) decode(in *jlexer.Lexer) {
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "id":
			s.ID = in.Uint64()
		case "parentId":
			s.ParentID = in.Uint64()
		case "branchId":
			s.BranchID = in.String()
		case "timestamp":
			s.Timestamp = decodeTime(in)
		case "name":
			s.Name = in.String()
		case "description":
			s.Description = in.String()
		case "metadata":
			s.Metadata.decode(in)
		case "thumbnail":
			s.Thumbnail = in.String()
		case "data":
			s.Data = slices.Clone(in.Raw())
		case "packed":
			s.Packed = in.Bytes()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func (m *metadataRecord) decode(in *jlexer.Lexer) {
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "memoryUsage":
			m.MemoryUsage = in.Int64()
		case "compressed":
			m.Compressed = in.Bool()
		case "tool":
			m.Tool = in.String()
		case "layerId":
			m.LayerID = in.String()
		case "attrs":
			m.Attrs = make(map[string]string)
			in.Delim('{')
			for !in.IsDelim('}') {
				k := in.String()
				in.WantColon()
				m.Attrs[k] = in.String()
				in.WantComma()
			}
			in.Delim('}')
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func decodeBranchRecords(in *jlexer.Lexer) []branchRecord {
	if in.IsNull() {
		in.Skip()
		return nil
	}
	out := []branchRecord{}
	in.Delim('[')
	for !in.IsDelim(']') {
		var b branchRecord
		in.Delim('{')
		for !in.IsDelim('}') {
			key := in.UnsafeFieldName(false)
			in.WantColon()
			if in.IsNull() {
				in.Skip()
				in.WantComma()
				continue
			}
			switch key {
			case "id":
				b.ID = in.String()
			case "name":
				b.Name = in.String()
			case "parentStateId":
				b.ParentStateID = in.Uint64()
			case "createdAt":
				b.CreatedAt = decodeTime(in)
			case "stateIds":
				in.Delim('[')
				for !in.IsDelim(']') {
					b.StateIDs = append(b.StateIDs, in.Uint64())
					in.WantComma()
				}
				in.Delim(']')
			case "isActive":
				b.Active = in.Bool()
			default:
				in.SkipRecursive()
			}
			in.WantComma()
		}
		in.Delim('}')
		out = append(out, b)
		in.WantComma()
	}
	in.Delim(']')
	return out
}
