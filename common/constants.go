// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

// Facade operation names (component F), used as metric and log attribute
// values so every op can be sliced the same way regardless of call site.
const (
	OpCreate          = "Create"
	OpOpen            = "Open"
	OpDelete          = "Delete"
	OpMkdirs          = "Mkdirs"
	OpRename          = "Rename"
	OpListStatus      = "ListStatus"
	OpGetStatus       = "GetStatus"
	OpExists          = "Exists"
	OpRepairImplicit  = "RepairPossibleImplicitDirectory"
	OpTimestampUpdate = "TimestampUpdate"
)
