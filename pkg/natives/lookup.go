package natives

import "github.com/jcd-as/deva-sub000/pkg/value"

// Lookup resolves a native module by name, for import statements the VM
// can satisfy without consulting a user-supplied Importer.
func Lookup(name string) (*value.NativeModuleObj, bool) {
	switch name {
	case "bit":
		return bitModule(), true
	case "math":
		return mathModule(), true
	case "os":
		return osModule(), true
	case "re":
		return reModule(), true
	default:
		return nil, false
	}
}
