// Copyright 2024 StreamNative, Inc.
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

// Package k8stest adds optimistic concurrency to the fake Kubernetes
// clientset, which otherwise accepts any update.
package k8stest

import (
	"strconv"

	"github.com/pkg/errors"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

// NewClientset returns a fake clientset that assigns resource versions and
// rejects updates carrying a stale one.
func NewClientset(objects ...runtime.Object) *fake.Clientset {
	f := fake.NewSimpleClientset(objects...)
	f.PrependReactor("*", "*", ResourceVersionSupport(f.Tracker()))
	return f
}

func ResourceVersionSupport(tracker k8stesting.ObjectTracker) k8stesting.ReactionFunc {
	return func(action k8stesting.Action) (handled bool, ret runtime.Object, err error) {
		ns := action.GetNamespace()
		gvr := action.GetResource()
		switch action := action.(type) {
		case k8stesting.CreateActionImpl:
			accessor(action.GetObject()).SetResourceVersion("1")
			return false, action.GetObject(), nil

		case k8stesting.UpdateActionImpl:
			objMeta := accessor(action.GetObject())
			existing, err := tracker.Get(gvr, ns, objMeta.GetName())
			if err != nil {
				return false, action.GetObject(), nil
			}
			if objMeta.GetResourceVersion() != accessor(existing).GetResourceVersion() {
				return true, action.GetObject(), k8serrors.NewConflict(gvr.GroupResource(), objMeta.GetName(),
					errConflict)
			}
			incrementVersion(objMeta)
			return false, action.GetObject(), nil

		default:
			return false, nil, nil
		}
	}
}

var errConflict = errors.New("resource version mismatch")

func accessor(obj runtime.Object) metav1.Object {
	objMeta, err := meta.Accessor(obj)
	if err != nil {
		panic(err)
	}
	return objMeta
}

func incrementVersion(objMeta metav1.Object) {
	i, err := strconv.ParseUint(objMeta.GetResourceVersion(), 10, 64)
	if err != nil {
		i = 0
	}
	objMeta.SetResourceVersion(strconv.FormatUint(i+1, 10))
}
