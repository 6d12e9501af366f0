// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case zeusError:
		return specificErr.code()
	case multiErrors:
		return Code(specificErr.errs[0])
	default:
		return errUnexpected.code()
	}
}

// Family 返回错误所属大类的错误码，例如 ErrWireRequiredMissing 属于 ErrWireFormat。
func Family(err error) int32 {
	code := Code(err)
	if parent, ok := families[code]; ok {
		return parent
	}
	return code
}

// FamilyName 返回错误大类的可读名称，主要用于指标标签。
func FamilyName(err error) string {
	switch Family(err) {
	case ErrContractDefinition.errCode:
		return "contract_definition"
	case ErrWireFormat.errCode:
		return "wire_format"
	case ErrReference.errCode:
		return "reference"
	case ErrQuotaExceeded.errCode:
		return "quota_exceeded"
	case ErrUnsupportedType.errCode:
		return "unsupported_type"
	case 0:
		return "ok"
	default:
		return "unexpected"
	}
}

func IsRetryableErr(err error) bool {
	if merr, ok := errors.Cause(err).(zeusError); ok {
		return merr.retriable
	}

	return false
}

func GetErrorType(err error) ErrorType {
	if merr, ok := errors.Cause(err).(zeusError); ok {
		return merr.errType
	}

	return SystemError
}

// 契约定义相关错误封装。
func WrapErrContractDefinition(typ any, reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrContractDefinition, reason, value("type", typ))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrAmbiguousCollectionShape(typ any, shapes ...string) error {
	return wrapFields(ErrContractAmbiguousShape,
		value("type", typ),
		value("shapes", strings.Join(shapes, "|")),
	)
}

func WrapErrMissingConstructor(typ any, required string) error {
	return wrapFields(ErrContractMissingCtor, value("type", typ), value("required", required))
}

func WrapErrDuplicateMember(typ any, member string) error {
	return wrapFields(ErrContractDuplicateMember, value("type", typ), value("member", member))
}

func WrapErrDuplicateEnumValue(typ any, name string, val int64) error {
	return wrapFields(ErrContractDuplicateMember, value("type", typ), value("enum", name), value("value", val))
}

func WrapErrInvalidStableName(typ any, name, namespace string, reason string) error {
	return wrapFieldsWithDesc(ErrContractInvalidName, reason,
		value("type", typ),
		value("name", name),
		value("namespace", namespace),
	)
}

func WrapErrDuplicateStableName(name string, existing, actual any) error {
	return wrapFields(ErrContractDuplicateName,
		value("stableName", name),
		value("existing", existing),
		value("actual", actual),
	)
}

func WrapErrInvalidDataMember(typ any, member string, reason string) error {
	return wrapFieldsWithDesc(ErrContractInvalidMember, reason, value("type", typ), value("member", member))
}

func WrapErrMultipleBaseTypes(typ any, first, second string) error {
	return wrapFields(ErrContractMultipleBaseType, value("type", typ), value("first", first), value("second", second))
}

// 线格式相关错误封装。
func WrapErrUnexpectedNode(expected, actual string, msg ...string) error {
	err := wrapFields(ErrWireUnexpectedNode, value("expected", expected), value("actual", actual))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrWireFormat(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrWireFormat, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// WrapErrRequiredMemberMissing 标注缺失的必需成员以及发现缺口时所在的元素位置。
func WrapErrRequiredMemberMissing(contract any, member string, gap string) error {
	return wrapFields(ErrWireRequiredMissing,
		value("contract", contract),
		value("member", member),
		value("gap", gap),
	)
}

func WrapErrRequiredMemberNotEmitted(contract any, member string) error {
	return wrapFields(ErrWireRequiredNotEmitted, value("contract", contract), value("member", member))
}

func WrapErrArrayExceededSize(size int, msg ...string) error {
	err := wrapFields(ErrWireArrayExceededSize, value("size", size))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrUnknownType(name, namespace string, msg ...string) error {
	err := wrapFields(ErrWireUnknownType, value("name", name), value("namespace", namespace))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrInvalidValue(typ any, raw string, cause error) error {
	err := wrapFields(ErrWireInvalidValue, value("type", typ), value("value", raw))
	if cause != nil {
		err = errors.Wrap(err, cause.Error())
	}
	return err
}

func WrapErrReadOnlyCollection(typ any, message string) error {
	return wrapFieldsWithDesc(ErrWireReadOnlyCollection, message, value("type", typ))
}

func WrapErrLegacyTypeMismatch(declared, actual any) error {
	return wrapFields(ErrWireLegacyTypeMismatch, value("declared", declared), value("actual", actual))
}

func WrapErrHookFailed(hook string, typ any, cause error) error {
	err := wrapFields(ErrWireHookFailed, value("hook", hook), value("type", typ))
	if cause != nil {
		err = errors.Wrap(err, cause.Error())
	}
	return err
}

func WrapErrGetOnlyCollectionNil(contract any, member string) error {
	return wrapFields(ErrWireGetOnlyCollectionNil, value("contract", contract), value("member", member))
}

// 引用相关错误封装。
func WrapErrReferenceNotFound(id string) error {
	return wrapFields(ErrReferenceNotFound, value("id", id))
}

func WrapErrReferenceDuplicate(id string) error {
	return wrapFields(ErrReferenceDuplicate, value("id", id))
}

func WrapErrReferenceValueType(id string, typ any) error {
	return wrapFields(ErrReferenceValueType, value("id", id), value("type", typ))
}

func WrapErrReferenceCycle(typ any, depth int) error {
	return wrapFields(ErrReferenceCycle, value("type", typ), value("depth", depth))
}

// 配额相关错误封装。
func WrapErrMaxItemsExceeded(limit int, actual int) error {
	return wrapFields(ErrQuotaMaxItems, bound("items", actual, 0, limit))
}

func WrapErrMaxDepthExceeded(limit int) error {
	return wrapFields(ErrQuotaMaxDepth, value("limit", limit))
}

func WrapErrArrayTooLarge(size, remaining int) error {
	return wrapFields(ErrQuotaArrayTooLarge, bound("size", size, 0, remaining))
}

func WrapErrUnsupportedType(typ any, reason string) error {
	return wrapFieldsWithDesc(ErrUnsupportedType, reason, value("type", typ))
}

// 通用错误封装。
func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrOperationNotSupported(target string, op string) error {
	return wrapFields(ErrOperationNotSupported, value("target", target), value("operation", op))
}

func WrapErrParameterInvalidMsg(fmt string, args ...any) error {
	return errors.Wrapf(ErrParameterInvalid, fmt, args...)
}

func wrapFields(err zeusError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err zeusError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}

type boundField struct {
	name  string
	value any
	lower any
	upper any
}

func bound(name string, value, lower, upper any) boundField {
	return boundField{
		name,
		value,
		lower,
		upper,
	}
}

func (f boundField) String() string {
	return fmt.Sprintf("%v out of range %v <= %s <= %v", f.value, f.lower, f.name, f.upper)
}
