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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	contractSubsystem      = "datacontract"
	serializationSubsystem = "serialization"
)

var (
	// ContractLookups 统计注册表查询契约时的缓存命中情况。
	ContractLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: zeusNamespace,
			Subsystem: contractSubsystem,
			Name:      "lookups_total",
			Help:      "契约缓存查询次数，按命中与否区分",
		}, []string{resultLabelName})

	// ContractDerivations 统计契约推导次数，按契约种类与结果区分。
	ContractDerivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: zeusNamespace,
			Subsystem: contractSubsystem,
			Name:      "derivations_total",
			Help:      "契约推导次数",
		}, []string{kindLabelName, resultLabelName})

	ContractDerivationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: zeusNamespace,
			Subsystem: contractSubsystem,
			Name:      "derivation_latency",
			Help:      "单次契约推导（含依赖类型）耗时，单位毫秒",
			Buckets:   buckets,
		})

	// GraphItems 统计对象图中计入配额的对象个数。
	GraphItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: zeusNamespace,
			Subsystem: serializationSubsystem,
			Name:      "graph_items_total",
			Help:      "计入 MaxItemsInObjectGraph 配额的对象个数",
		}, []string{operationLabelName})

	OperationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: zeusNamespace,
			Subsystem: serializationSubsystem,
			Name:      "operation_latency",
			Help:      "一次完整序列化或反序列化的耗时，单位毫秒",
			Buckets:   buckets,
		}, []string{operationLabelName})

	// OperationFailures 按错误大类统计失败次数。
	OperationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: zeusNamespace,
			Subsystem: serializationSubsystem,
			Name:      "failures_total",
			Help:      "序列化失败次数，按错误大类区分",
		}, []string{operationLabelName, familyLabelName})

	// ExtensionMembers 统计捕获与回放的扩展数据成员数。
	ExtensionMembers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: zeusNamespace,
			Subsystem: serializationSubsystem,
			Name:      "extension_members_total",
			Help:      "扩展数据成员数，反序列化时为捕获，序列化时为回放",
		}, []string{operationLabelName})
)
