package natives

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/jcd-as/deva-sub000/pkg/value"
)

// osModule wraps process execution and file-system primitives behind
// the module_os.cpp surface, adapted from the teacher's ad-hoc
// *VM.fileRead/fileWrite/fileExists/fileDelete methods into a proper
// NativeModule.
func osModule() *value.NativeModuleObj {
	fns := map[string]value.Value{
		"exec": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			if len(args) == 0 || !args[0].IsString() {
				return value.Value{}, fmt.Errorf("os.exec: requires a command string")
			}
			out, runErr := exec.Command("/bin/sh", "-c", args[0].Str()).CombinedOutput()
			status := 0
			if runErr != nil {
				if exitErr, ok := runErr.(*exec.ExitError); ok {
					status = exitErr.ExitCode()
				} else {
					status = -1
				}
			}
			m := value.NewMap()
			m.Set(value.StringValue("stdout"), value.StringValue(string(out)))
			m.Set(value.StringValue("status"), value.NumberValue(float64(status)))
			return value.MapValue(m), nil
		}, false),
		"read": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			if len(args) == 0 || !args[0].IsString() {
				return value.Value{}, fmt.Errorf("os.read: requires a path string")
			}
			data, err := os.ReadFile(args[0].Str())
			if err != nil {
				return value.Value{}, fmt.Errorf("os.read: %v", err)
			}
			return value.StringValue(string(data)), nil
		}, false),
		"write": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			if len(args) < 2 || !args[0].IsString() || !args[1].IsString() {
				return value.Value{}, fmt.Errorf("os.write: requires a path and contents string")
			}
			if err := os.WriteFile(args[0].Str(), []byte(args[1].Str()), 0644); err != nil {
				return value.Value{}, fmt.Errorf("os.write: %v", err)
			}
			return value.NullValue(), nil
		}, false),
		"exists": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			if len(args) == 0 || !args[0].IsString() {
				return value.Value{}, fmt.Errorf("os.exists: requires a path string")
			}
			_, err := os.Stat(args[0].Str())
			return value.BoolValue(err == nil), nil
		}, false),
		"remove": value.NativeFunctionValue(func(frame interface{}, args []value.Value) (value.Value, error) {
			if len(args) == 0 || !args[0].IsString() {
				return value.Value{}, fmt.Errorf("os.remove: requires a path string")
			}
			if err := os.Remove(args[0].Str()); err != nil {
				return value.Value{}, fmt.Errorf("os.remove: %v", err)
			}
			return value.NullValue(), nil
		}, false),
	}
	return &value.NativeModuleObj{Name: "os", Functions: fns}
}
