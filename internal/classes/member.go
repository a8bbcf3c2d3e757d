package classes

import (
	"github.com/funvibe/typecore/internal/typesystem"
)

// Storage is the storage class of a member.
type Storage uint8

const (
	InstanceVar Storage = iota
	ClassVar
	ClassConst
)

func (s Storage) String() string {
	switch s {
	case InstanceVar:
		return "instance variable"
	case ClassVar:
		return "class variable"
	case ClassConst:
		return "class constant"
	}
	return "unknown"
}

// Permission controls member visibility.
type Permission uint8

const (
	Private Permission = iota
	Protected
	Public
)

func (p Permission) String() string {
	switch p {
	case Private:
		return "private"
	case Protected:
		return "protected"
	case Public:
		return "public"
	}
	return "unknown"
}

// Member is an entry of a class lookup table.
type Member struct {
	Storage    Storage
	Permission Permission
	// Super is the breadth-first index of the declaring ancestor; 0 is the
	// class itself.
	Super int
	// Index is the slot in the constant, class variable or instance layout
	// array selected by Storage.
	Index int
}

// Own reports whether the member is declared by the class itself.
func (m Member) Own() bool { return m.Super == 0 }

// Decl is the declaration site of a member.
type Decl struct {
	Name       string
	Permission Permission
	Line       int
}

// Value is a typed value. Data is opaque to the type engine except for
// *typesystem.Overloads, which marks a method constant, and *typesystem.Type.
type Value struct {
	Type *typesystem.Type
	Data any
}

// Overloads returns the overload set held by a method constant.
func (v Value) Overloads() (*typesystem.Overloads, bool) {
	o, ok := v.Data.(*typesystem.Overloads)
	return o, ok
}

// Constant is a class constant slot.
type Constant struct {
	Name  string
	Value Value
	Line  int
}

// Variable is a class variable or an instance variable slot. For instance
// variables Value holds the default.
type Variable struct {
	Name  string
	Type  *typesystem.Type
	Value Value
	Line  int
}
