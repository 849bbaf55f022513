package document

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/go-lynx/lynx-mongolog/event"
)

// Keys of the exception sub-document, in the order they are written.
const (
	ExcMessage       = "Message"
	ExcBaseMessage   = "BaseMessage"
	ExcText          = "Text"
	ExcType          = "Type"
	ExcErrorCode     = "ErrorCode"
	ExcCode          = "Code"
	ExcSource        = "Source"
	ExcMethodName    = "MethodName"
	ExcModuleName    = "ModuleName"
	ExcModuleVersion = "ModuleVersion"
)

// frames from these packages never count as the origin of an error.
var skipPrefixes = []string{
	"github.com/pkg/errors",
	"runtime.",
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

type multiError interface {
	Unwrap() []error
}

// Exception describes err as an ordered document. An aggregate holding exactly
// one error is described as that error. A nil error yields nil.
func Exception(err error) bson.D {
	err = unwrapSingle(err)
	if event.IsNilError(err) {
		return nil
	}

	doc := bson.D{
		{Key: ExcMessage, Value: err.Error()},
		{Key: ExcBaseMessage, Value: baseCause(err).Error()},
		{Key: ExcText, Value: fmt.Sprintf("%+v", err)},
		{Key: ExcType, Value: fmt.Sprintf("%T", err)},
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		doc = append(doc, bson.E{Key: ExcErrorCode, Value: int64(errno)})
	}
	doc = append(doc, bson.E{Key: ExcCode, Value: resultCode(err)})

	fn, ok := origin(err)
	if !ok {
		return append(doc, bson.E{Key: ExcSource, Value: ""})
	}
	pkg, method := splitFuncName(fn)
	doc = append(doc,
		bson.E{Key: ExcSource, Value: pkg},
		bson.E{Key: ExcMethodName, Value: method},
	)
	if mod, ok := moduleOf(pkg); ok {
		doc = append(doc,
			bson.E{Key: ExcModuleName, Value: mod.Path},
			bson.E{Key: ExcModuleVersion, Value: mod.Version},
		)
	}
	return doc
}

func unwrapSingle(err error) error {
	for {
		m, ok := err.(multiError)
		if !ok {
			return err
		}
		inner := m.Unwrap()
		if len(inner) != 1 || event.IsNilError(inner[0]) {
			return err
		}
		err = inner[0]
	}
}

func baseCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if event.IsNilError(next) {
			return err
		}
		err = next
	}
}

// resultCode is the kratos status code when the chain carries one, 0 otherwise.
func resultCode(err error) int32 {
	var ke *kerrors.Error
	if errors.As(err, &ke) && ke != nil {
		return ke.Code
	}
	return 0
}

// origin finds the function that created the innermost stack-carrying error
// in the chain.
func origin(err error) (string, bool) {
	var st pkgerrors.StackTrace
	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := e.(stackTracer); ok {
			st = s.StackTrace()
		}
	}
	for _, f := range st {
		fn := runtime.FuncForPC(uintptr(f) - 1)
		if fn == nil {
			continue
		}
		name := fn.Name()
		if name == "" || hasAnyPrefix(name, skipPrefixes) {
			continue
		}
		return name, true
	}
	return "", false
}

// splitFuncName turns "example.com/a/b.(*T).M" into ("example.com/a/b", "(*T).M").
func splitFuncName(name string) (pkg, method string) {
	slash := strings.LastIndex(name, "/")
	dot := strings.Index(name[slash+1:], ".")
	if dot < 0 {
		return name, ""
	}
	dot += slash + 1
	return name[:dot], name[dot+1:]
}

var (
	buildInfoOnce sync.Once
	buildModules  []*debug.Module
)

// moduleOf returns the module of the binary's build that defines pkg.
func moduleOf(pkg string) (*debug.Module, bool) {
	buildInfoOnce.Do(func() {
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		buildModules = append(buildModules, &bi.Main)
		buildModules = append(buildModules, bi.Deps...)
	})
	var best *debug.Module
	for _, m := range buildModules {
		if m.Path == "" || !(pkg == m.Path || strings.HasPrefix(pkg, m.Path+"/")) {
			continue
		}
		if best == nil || len(m.Path) > len(best.Path) {
			best = m
		}
	}
	return best, best != nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
