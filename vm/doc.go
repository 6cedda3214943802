// Package vm implements the TO2 virtual machine.
//
// This package contains:
//   - the value representation shared by compiled code and host bindings
//   - opcodes and the Emitter used by code generation
//   - units (compiled bodies) and function descriptors
//   - the bytecode interpreter and async tasks
//   - disassembly
package vm
