package wasm

const (
	valI32 = 0x7f
	valI64 = 0x7e

	guestDataOffset = 1024
	guestAllocPtr   = 32768
)

// guest describes a minimal module exporting memory, alloc and update.
// alloc returns allocPtr; update ignores its input and returns result,
// which points into data placed at guestDataOffset.
type guest struct {
	allocParams   []byte
	updateResults []byte
	allocPtr      int32
	result        int64
	data          []byte
}

func newGuest(resp []byte) guest {
	return guest{
		allocParams:   []byte{valI32},
		updateResults: []byte{valI64},
		allocPtr:      guestAllocPtr,
		result:        pack(guestDataOffset, len(resp)),
		data:          resp,
	}
}

func pack(ptr, size int) int64 {
	return int64(ptr)<<32 | int64(size)
}

func (g guest) binary() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	types := vec(2,
		funcType(g.allocParams, []byte{valI32}),
		funcType([]byte{valI32, valI32}, g.updateResults),
	)
	out = append(out, section(1, types)...)
	out = append(out, section(3, vec(2, []byte{0x00}, []byte{0x01}))...)
	out = append(out, section(5, vec(1, []byte{0x00, 0x01}))...)
	out = append(out, section(7, vec(3,
		export("memory", 0x02, 0),
		export(AllocFunction, 0x00, 0),
		export(UpdateFunction, 0x00, 1),
	))...)

	allocBody := append(append([]byte{0x41}, sleb(int64(g.allocPtr))...), 0x0b)
	updateBody := []byte{0x0b}
	if len(g.updateResults) > 0 {
		updateBody = append(append([]byte{0x42}, sleb(g.result)...), 0x0b)
	}
	out = append(out, section(10, vec(2, body(allocBody), body(updateBody)))...)

	if len(g.data) > 0 {
		seg := []byte{0x00, 0x41}
		seg = append(seg, sleb(guestDataOffset)...)
		seg = append(seg, 0x0b)
		seg = append(seg, uleb(uint32(len(g.data)))...)
		seg = append(seg, g.data...)
		out = append(out, section(11, vec(1, seg))...)
	}

	return out
}

func section(id byte, content []byte) []byte {
	out := append([]byte{id}, uleb(uint32(len(content)))...)

	return append(out, content...)
}

func vec(n uint32, items ...[]byte) []byte {
	out := uleb(n)
	for _, it := range items {
		out = append(out, it...)
	}

	return out
}

func funcType(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint32(len(params)))...)
	out = append(out, params...)
	out = append(out, uleb(uint32(len(results)))...)

	return append(out, results...)
}

func export(name string, kind byte, index uint32) []byte {
	out := uleb(uint32(len(name)))
	out = append(out, name...)
	out = append(out, kind)

	return append(out, uleb(index)...)
}

// body prefixes code with an empty locals vector and its size.
func body(code []byte) []byte {
	content := append([]byte{0x00}, code...)

	return append(uleb(uint32(len(content))), content...)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
