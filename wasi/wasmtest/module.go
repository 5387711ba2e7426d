// Package wasmtest builds tiny WebAssembly modules that follow the wasi
// calling convention, for tests that need a deployable contract.
package wasmtest

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}

func section(id byte, content []byte) []byte {
	out := append([]byte{id}, uleb(uint32(len(content)))...)
	return append(out, content...)
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func body(code ...byte) []byte {
	b := append([]byte{0x00}, code...) // no locals
	return append(uleb(uint32(len(b))), b...)
}

// BuildContract assembles a module that answers every call with result.
// result sits at offset 0, inputs are written at 1024.
func BuildContract(result string) []byte {
	const i32 = 0x7f
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	sigs := []byte{0x04,
		0x60, 0x01, i32, 0x01, i32, // allocate
		0x60, 0x02, i32, i32, 0x00, // deallocate
		0x60, 0x00, 0x01, i32, // get_buffer_address
		0x60, 0x02, i32, i32, 0x01, i32, // handle_contract_call
	}
	wasm = append(wasm, section(1, sigs)...)
	wasm = append(wasm, section(3, []byte{0x04, 0x00, 0x01, 0x02, 0x03})...)
	wasm = append(wasm, section(5, []byte{0x01, 0x00, 0x01})...)

	exports := []byte{0x05}
	exports = append(append(exports, name("memory")...), 0x02, 0x00)
	exports = append(append(exports, name("allocate")...), 0x00, 0x00)
	exports = append(append(exports, name("deallocate")...), 0x00, 0x01)
	exports = append(append(exports, name("get_buffer_address")...), 0x00, 0x02)
	exports = append(append(exports, name("handle_contract_call")...), 0x00, 0x03)
	wasm = append(wasm, section(7, exports)...)

	code := []byte{0x04}
	code = append(code, body(append(append([]byte{0x41}, sleb(1024)...), 0x0b)...)...)
	code = append(code, body(0x0b)...)
	code = append(code, body(0x41, 0x00, 0x0b)...)
	code = append(code, body(append(append([]byte{0x41}, sleb(int32(len(result)))...), 0x0b)...)...)
	wasm = append(wasm, section(10, code)...)

	data := []byte{0x01, 0x00, 0x41, 0x00, 0x0b}
	data = append(data, uleb(uint32(len(result)))...)
	data = append(data, result...)
	return append(wasm, section(11, data)...)
}
