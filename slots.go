package wrenlet

import (
	"go.uber.org/zap"
)

// Slots is checked access to a VM's slot array. A Slots obtained from
// VM.Slots is valid until the next Interpret, Call or Close; one passed to a
// foreign method or constructor is valid until it returns. Using it later, or
// with an index past Count, panics with a *ContractViolation.
type Slots struct {
	h   *header
	gen uint64
}

func newSlots(h *header) *Slots {
	h.slotGen++
	return &Slots{h: h, gen: h.slotGen}
}

func (s *Slots) valid(op string) *header {
	if s.h.native == nil {
		panic(violation(s.h, op, "vm closed"))
	}
	if s.gen != s.h.slotGen {
		panic(violation(s.h, op, "slots used after the vm ran again"))
	}
	return s.h
}

func (s *Slots) check(op string, slots ...int) *header {
	h := s.valid(op)
	count := h.native.SlotCount()
	for _, slot := range slots {
		if slot < 0 || slot >= count {
			panic(violation(h, op, "slot %d out of range (%d slots)", slot, count))
		}
	}
	return h
}

// Count returns the number of slots.
func (s *Slots) Count() int {
	return s.valid("Count").native.SlotCount()
}

// Ensure grows the slot array to at least n slots. New slots hold null and
// existing slots are left untouched.
func (s *Slots) Ensure(n int) {
	h := s.valid("Ensure")
	if n < 0 {
		panic(violation(h, "Ensure", "negative slot count %d", n))
	}
	old := h.native.SlotCount()
	h.native.EnsureSlots(n)
	// wrenEnsureSlots only moves the stack top.
	for i := old; i < n; i++ {
		h.native.SetSlotNull(i)
	}
	if n > h.slotsAllocated {
		h.slotsAllocated = n
	}
}

// Type returns the type tag of slot.
func (s *Slots) Type(slot int) SlotType {
	return s.check("Type", slot).native.SlotType(slot)
}

// Set stores v in slot, growing the slot array as needed. See Call for the
// supported types. Unsupported values return ErrUnsupportedType and leave the
// slots untouched.
func (s *Slots) Set(slot int, v any) error {
	h := s.valid("Set")
	if slot < 0 {
		panic(violation(h, "Set", "negative slot %d", slot))
	}
	enc, err := encode(v)
	if err != nil {
		return err
	}
	s.Ensure(slot + 1)
	enc(h, slot)
	return nil
}

// Value reads slot as a Value. It never fails.
func (s *Slots) Value(slot int) Value {
	v, _ := Get[Value](s, slot)
	return v
}

// NewList stores a new empty list in slot.
func (s *Slots) NewList(slot int) {
	s.Ensure(slot + 1)
	s.h.native.SetSlotNewList(slot)
}

// NewMap stores a new empty map in slot.
func (s *Slots) NewMap(slot int) {
	s.Ensure(slot + 1)
	s.h.native.SetSlotNewMap(slot)
}

func (s *Slots) checkType(op string, slot int, want SlotType) (*header, error) {
	h := s.check(op, slot)
	if found := h.native.SlotType(slot); found != want {
		return nil, mismatch(found, want)
	}
	return h, nil
}

// ListCount returns the length of the list in slot.
func (s *Slots) ListCount(slot int) (int, error) {
	h, err := s.checkType("ListCount", slot, TypeList)
	if err != nil {
		return 0, err
	}
	return h.native.ListCount(slot), nil
}

// ListElement copies element index of the list in listSlot into
// elementSlot. Negative indices count from the end.
func (s *Slots) ListElement(listSlot, index, elementSlot int) error {
	h, err := s.listIndex("ListElement", listSlot, index, elementSlot, false)
	if err != nil {
		return err
	}
	h.native.ListElement(listSlot, index, elementSlot)
	return nil
}

// SetListElement replaces element index of the list in listSlot with the
// value in elementSlot.
func (s *Slots) SetListElement(listSlot, index, elementSlot int) error {
	h, err := s.listIndex("SetListElement", listSlot, index, elementSlot, false)
	if err != nil {
		return err
	}
	h.native.SetListElement(listSlot, index, elementSlot)
	return nil
}

// InsertInList inserts the value in elementSlot before index; -1 appends.
func (s *Slots) InsertInList(listSlot, index, elementSlot int) error {
	h, err := s.listIndex("InsertInList", listSlot, index, elementSlot, true)
	if err != nil {
		return err
	}
	h.native.InsertInList(listSlot, index, elementSlot)
	return nil
}

// listIndex checks an index before it reaches the VM, which does not
// bounds check list accesses from the slot API.
func (s *Slots) listIndex(op string, listSlot, index, elementSlot int, insert bool) (*header, error) {
	s.check(op, elementSlot)
	h, err := s.checkType(op, listSlot, TypeList)
	if err != nil {
		return nil, err
	}
	n := h.native.ListCount(listSlot)
	if insert {
		n++
	}
	if index < 0 {
		index += n
	}
	if index < 0 || index >= n {
		panic(violation(h, op, "list index out of bounds (%d elements)", h.native.ListCount(listSlot)))
	}
	return h, nil
}

// MapCount returns the number of entries of the map in slot.
func (s *Slots) MapCount(slot int) (int, error) {
	h, err := s.checkType("MapCount", slot, TypeMap)
	if err != nil {
		return 0, err
	}
	return h.native.MapCount(slot), nil
}

// MapContainsKey reports whether the map in mapSlot has the key in keySlot.
func (s *Slots) MapContainsKey(mapSlot, keySlot int) (bool, error) {
	s.check("MapContainsKey", keySlot)
	h, err := s.checkType("MapContainsKey", mapSlot, TypeMap)
	if err != nil {
		return false, err
	}
	return h.native.MapContainsKey(mapSlot, keySlot), nil
}

// MapValue copies the value for the key in keySlot into valueSlot; a missing
// key yields null.
func (s *Slots) MapValue(mapSlot, keySlot, valueSlot int) error {
	s.check("MapValue", keySlot, valueSlot)
	h, err := s.checkType("MapValue", mapSlot, TypeMap)
	if err != nil {
		return err
	}
	h.native.MapValue(mapSlot, keySlot, valueSlot)
	return nil
}

// SetMapValue stores the value in valueSlot under the key in keySlot.
func (s *Slots) SetMapValue(mapSlot, keySlot, valueSlot int) error {
	s.check("SetMapValue", keySlot, valueSlot)
	h, err := s.checkType("SetMapValue", mapSlot, TypeMap)
	if err != nil {
		return err
	}
	h.native.SetMapValue(mapSlot, keySlot, valueSlot)
	return nil
}

// RemoveMapValue removes the key in keySlot and stores the removed value, or
// null, in removedSlot.
func (s *Slots) RemoveMapValue(mapSlot, keySlot, removedSlot int) error {
	s.check("RemoveMapValue", keySlot, removedSlot)
	h, err := s.checkType("RemoveMapValue", mapSlot, TypeMap)
	if err != nil {
		return err
	}
	h.native.RemoveMapValue(mapSlot, keySlot, removedSlot)
	return nil
}

// Abort aborts the running fiber with err's message. It is only meaningful
// inside a foreign method or constructor.
func (s *Slots) Abort(err error) {
	h := s.valid("Abort")
	if h.foreignDepth == 0 {
		panic(violation(h, "Abort", "no foreign method is running"))
	}
	s.Ensure(1)
	h.native.SetSlotBytes(0, []byte(err.Error()))
	h.native.AbortFiber(0)
	h.logger.Debug("fiber aborted", zap.Error(err))
}

// enterForeign returns the Slots of a foreign method or allocator. The
// returned func invalidates them.
func (h *header) enterForeign() (*Slots, func()) {
	h.foreignDepth++
	s := newSlots(h)
	return s, func() {
		h.foreignDepth--
		h.slotGen++
	}
}
