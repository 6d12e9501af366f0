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
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// 契约定义相关：类型无法被建模为数据契约（推导期错误，失败后不缓存）。
	ErrContractDefinition       = newZeusError("invalid data contract", 100, false)
	ErrContractAmbiguousShape   = newZeusError("ambiguous collection shape", 101, false)
	ErrContractMissingCtor      = newZeusError("missing required constructor", 102, false)
	ErrContractDuplicateMember  = newZeusError("duplicate member", 103, false)
	ErrContractInvalidName      = newZeusError("invalid stable name", 104, false)
	ErrContractDuplicateName    = newZeusError("duplicate stable name", 105, false)
	ErrContractInvalidMember    = newZeusError("invalid data member", 106, false)
	ErrContractMultipleBaseType = newZeusError("multiple base types", 107, false)

	// 线格式相关：输入的 XML 与契约不匹配。
	ErrWireFormat               = newZeusError("invalid wire format", 200, false, WithErrorType(InputError))
	ErrWireUnexpectedNode       = newZeusError("unexpected node", 201, false, WithErrorType(InputError))
	ErrWireRequiredMissing      = newZeusError("required member missing", 202, false, WithErrorType(InputError))
	ErrWireRequiredNotEmitted   = newZeusError("required member must be emitted", 203, false, WithErrorType(InputError))
	ErrWireArrayExceededSize    = newZeusError("array exceeded size", 204, false, WithErrorType(InputError))
	ErrWireUnknownType          = newZeusError("unresolvable type", 205, false, WithErrorType(InputError))
	ErrWireInvalidValue         = newZeusError("invalid value", 206, false, WithErrorType(InputError))
	ErrWireReadOnlyCollection   = newZeusError("read-only collection", 207, false, WithErrorType(InputError))
	ErrWireLegacyTypeMismatch   = newZeusError("legacy serializable type mismatch", 208, false, WithErrorType(InputError))
	ErrWireHookFailed           = newZeusError("serialization hook failed", 209, false)
	ErrWireGetOnlyCollectionNil = newZeusError("get-only collection is nil", 210, false)

	// 引用相关：id/ref 解析失败或无法满足。
	ErrReference          = newZeusError("invalid object reference", 300, false, WithErrorType(InputError))
	ErrReferenceNotFound  = newZeusError("deserialized object with id not found", 301, false, WithErrorType(InputError))
	ErrReferenceDuplicate = newZeusError("object id reused", 302, false, WithErrorType(InputError))
	ErrReferenceValueType = newZeusError("self reference on value type", 303, false, WithErrorType(InputError))
	ErrReferenceCycle     = newZeusError("cannot serialize cycle", 304, false)

	// 配额相关：刻意不可恢复，用于约束恶意输入。
	ErrQuotaExceeded      = newZeusError("quota exceeded", 400, false, WithErrorType(InputError))
	ErrQuotaMaxItems      = newZeusError("max items in object graph exceeded", 401, false, WithErrorType(InputError))
	ErrQuotaMaxDepth      = newZeusError("max depth exceeded", 402, false, WithErrorType(InputError))
	ErrQuotaArrayTooLarge = newZeusError("array size exceeds quota", 403, false, WithErrorType(InputError))

	// 不支持的类型形态。
	ErrUnsupportedType = newZeusError("unsupported type", 500, false)

	// General
	ErrParameterInvalid      = newZeusError("invalid parameter", 1100, false)
	ErrOperationNotSupported = newZeusError("unsupported operation", 3000, false)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to zeusError
	errUnexpected = newZeusError("unexpected error", (1<<16)-1, false)
)

// families 记录每个叶子错误所属的大类，用于 errors.Is(err, ErrWireFormat) 之类的判断。
var families = map[int32]int32{
	101: 100, 102: 100, 103: 100, 104: 100, 105: 100, 106: 100, 107: 100,
	201: 200, 202: 200, 203: 200, 204: 200, 205: 200, 206: 200, 207: 200, 208: 200, 209: 200, 210: 200,
	301: 300, 302: 300, 303: 300, 304: 300,
	401: 400, 402: 400, 403: 400,
}

type errorOption func(*zeusError)

func WithErrorType(etype ErrorType) errorOption {
	return func(err *zeusError) {
		err.errType = etype
	}
}

type zeusError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	errType   ErrorType
}

func newZeusError(msg string, code int32, retriable bool, options ...errorOption) zeusError {
	err := zeusError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e zeusError) code() int32 {
	return e.errCode
}

func (e zeusError) Error() string {
	return e.msg
}

func (e zeusError) Detail() string {
	return e.detail
}

// Is 在错误码相同，或 err 为 e 所属大类时返回 true。
func (e zeusError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(zeusError); ok {
		if e.errCode == cause.errCode {
			return true
		}
		return families[e.errCode] == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
