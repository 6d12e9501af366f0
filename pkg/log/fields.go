package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FieldNameModule      = "module"
	FieldNameComponent   = "component"
	FieldNameOperation   = "operation"
	FieldNameOperationID = "operationID"
	FieldNameContract    = "contract"
	FieldNameStableName  = "stableName"
	FieldNameDepth       = "depth"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldContract 返回一个包含契约种类的 zap 字段，例如 class、collection。
func FieldContract(kind string) zap.Field {
	return zap.String(FieldNameContract, kind)
}

// FieldStableName 返回 {namespace}name 形式的稳定名字段。
func FieldStableName(name, namespace string) zap.Field {
	return zap.String(FieldNameStableName, "{"+namespace+"}"+name)
}

// FieldDepth 返回当前对象图深度字段。
func FieldDepth(depth int) zap.Field {
	return zap.Int(FieldNameDepth, depth)
}

// FieldMessage 返回一个包含消息对象的 zap 字段。
func FieldMessage(msg zapcore.ObjectMarshaler) zap.Field {
	return zap.Object("message", msg)
}
