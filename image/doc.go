// Package image handles the memory images moved between files and the
// cartridge.
//
// # Image arguments
//
// Every file argument of the CLI may carry a start address and a length:
//
//	file_name[:memory_address[:length]]
//
// Numbers use Go integer literal syntax with base prefixes, so 0x6000,
// 24576 and 0o60000 are the same address. Omitted fields are zero, which
// means "from address 0" and "the whole file" (writes) or "the region
// default" (reads).
//
// # Usage
//
//	spec, err := image.ParseSpec("save.srm:0x6000:0x2000")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	data, err := image.Load(spec)
package image
