// Copyright 2024 Greptime Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package e2e

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "github.com/podctl/podctl/pkg/apis/core/v1"
)

var _ = Describe("ReplicaSet and Service reconciliation", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness()
	})

	AfterEach(func() {
		h.stop()
	})

	It("scales up to the desired replica count", func() {
		_, err := h.aggregate.ReplicaSets.Create(replicaSet("web", 3, map[string]string{"app": "test"}))
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int {
			return len(runningOwnedPods(h, "web"))
		}, 5*time.Second, 20*time.Millisecond).Should(Equal(3))

		Eventually(func() int {
			rs, err := h.aggregate.ReplicaSets.Get(corev1.DefaultNamespace, "web")
			Expect(err).NotTo(HaveOccurred())
			return rs.Status.Replicas
		}, 5*time.Second, 20*time.Millisecond).Should(Equal(3))
	})

	It("reconciles a replica count change up then down, preferring to keep Running pods", func() {
		_, err := h.aggregate.ReplicaSets.Create(replicaSet("web", 3, map[string]string{"app": "test"}))
		Expect(err).NotTo(HaveOccurred())
		Eventually(func() int { return len(runningOwnedPods(h, "web")) }, 5*time.Second, 20*time.Millisecond).Should(Equal(3))

		_, err = h.aggregate.ReplicaSets.Update(corev1.DefaultNamespace, "web",
			corev1.ReplicaSetSpec{Replicas: 5, Selector: corev1.Selector{"app": "test"}, Template: replicaSet("web", 5, map[string]string{"app": "test"}).Spec.Template},
			nil)
		Expect(err).NotTo(HaveOccurred())
		Eventually(func() int { return len(runningOwnedPods(h, "web")) }, 5*time.Second, 20*time.Millisecond).Should(Equal(5))

		_, err = h.aggregate.ReplicaSets.Update(corev1.DefaultNamespace, "web",
			corev1.ReplicaSetSpec{Replicas: 2, Selector: corev1.Selector{"app": "test"}, Template: replicaSet("web", 2, map[string]string{"app": "test"}).Spec.Template},
			nil)
		Expect(err).NotTo(HaveOccurred())
		Eventually(func() int { return len(runningOwnedPods(h, "web")) }, 5*time.Second, 20*time.Millisecond).Should(Equal(2))
	})

	It("recovers from an out-of-band container disappearance", func() {
		_, err := h.aggregate.ReplicaSets.Create(replicaSet("web", 2, map[string]string{"app": "test"}))
		Expect(err).NotTo(HaveOccurred())
		Eventually(func() int { return len(runningOwnedPods(h, "web")) }, 5*time.Second, 20*time.Millisecond).Should(Equal(2))

		before := runningOwnedPods(h, "web")
		killed := before[0]
		h.fake.SimulateDisappear(killed.Status.ContainerID)

		Eventually(func() int { return len(runningOwnedPods(h, "web")) }, 6*time.Second, 20*time.Millisecond).Should(Equal(2))

		after := runningOwnedPods(h, "web")
		var names []string
		for _, p := range after {
			names = append(names, p.Metadata.Name)
		}
		Expect(names).NotTo(ContainElement(killed.Metadata.Name))
	})

	It("cascades a ReplicaSet delete to its owned Pods", func() {
		_, err := h.aggregate.ReplicaSets.Create(replicaSet("web", 2, map[string]string{"app": "test"}))
		Expect(err).NotTo(HaveOccurred())
		Eventually(func() int { return len(runningOwnedPods(h, "web")) }, 5*time.Second, 20*time.Millisecond).Should(Equal(2))

		Expect(h.aggregate.ReplicaSets.Delete(corev1.DefaultNamespace, "web")).To(Succeed())

		Eventually(func() int {
			return len(h.aggregate.Pods.List(corev1.DefaultNamespace, nil))
		}, 3*time.Second, 20*time.Millisecond).Should(Equal(0))

		Eventually(func() int {
			return len(h.aggregate.ReplicaSets.List(corev1.DefaultNamespace, nil))
		}, 3*time.Second, 20*time.Millisecond).Should(Equal(0))
	})

	It("tracks Service endpoints as matching Pods come and go", func() {
		_, err := h.aggregate.Services.Create(&corev1.Service{
			Metadata: corev1.ObjectMeta{Name: "health-service"},
			Spec: corev1.ServiceSpec{
				Selector: corev1.Selector{"app": "health"},
				Ports:    []corev1.ServicePort{{Port: 2000, TargetPort: 5000}},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		first, err := h.aggregate.Pods.Create(namedPod("health-1", map[string]string{"app": "health"}))
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int {
			svc, err := h.aggregate.Services.Get(corev1.DefaultNamespace, "health-service")
			Expect(err).NotTo(HaveOccurred())
			return len(svc.Status.Endpoints)
		}, 5*time.Second, 20*time.Millisecond).Should(Equal(1))

		_, err = h.aggregate.Pods.Create(namedPod("health-2", map[string]string{"app": "health"}))
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int {
			svc, err := h.aggregate.Services.Get(corev1.DefaultNamespace, "health-service")
			Expect(err).NotTo(HaveOccurred())
			return len(svc.Status.Endpoints)
		}, 5*time.Second, 20*time.Millisecond).Should(Equal(2))

		Expect(h.aggregate.Pods.Delete(first.Metadata.Namespace, first.Metadata.Name)).To(Succeed())

		Eventually(func() int {
			svc, err := h.aggregate.Services.Get(corev1.DefaultNamespace, "health-service")
			Expect(err).NotTo(HaveOccurred())
			return len(svc.Status.Endpoints)
		}, 5*time.Second, 20*time.Millisecond).Should(Equal(1))
	})

	It("rejects invalid specs at creation time", func() {
		_, err := h.aggregate.ReplicaSets.Create(replicaSet("bad", -1, map[string]string{"app": "test"}))
		Expect(err).To(HaveOccurred())
		Expect(h.aggregate.ReplicaSets.List(corev1.DefaultNamespace, nil)).To(BeEmpty())

		_, err = h.aggregate.Pods.Create(&corev1.Pod{
			Metadata: corev1.ObjectMeta{Name: "bad-pod"},
			Spec:     corev1.PodSpec{Containers: nil},
		})
		Expect(err).To(HaveOccurred())
	})
})

func runningOwnedPods(h *harness, rsName string) []*corev1.Pod {
	rs, err := h.aggregate.ReplicaSets.Get(corev1.DefaultNamespace, rsName)
	if err != nil {
		return nil
	}
	var out []*corev1.Pod
	for _, p := range h.aggregate.Pods.List(corev1.DefaultNamespace, nil) {
		if !p.Metadata.HasOwner(rs.Metadata.UID) {
			continue
		}
		if p.Status.Phase == corev1.PodRunning {
			out = append(out, p)
		}
	}
	return out
}
