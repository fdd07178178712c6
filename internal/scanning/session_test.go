package scanning

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Session", func() {
	var (
		cfg        Config
		camera     *mockCamera
		opens      int
		openErr    error
		failFirst  int
		recognizer *mockRecognizer
		listener   *mockListener
		clock      *mockTimeSource
		session    *Session
		startErr   error
		autoStart  bool

		previewErr    error
		beforePreview func()
	)

	opener := CameraOpenerFunc(func() (Camera, error) {
		opens++
		if openErr != nil || opens <= failFirst {
			return nil, errors.Join(errors.New("camera busy"), openErr)
		}
		camera = &mockCamera{startErr: previewErr, beforeStart: beforePreview}
		return camera, nil
	})

	sharp := func(info DetectionInfo) DetectionInfo {
		info.FocusScore = 10
		return info
	}

	BeforeEach(func() {
		opens = 0
		openErr = nil
		failFirst = 0
		previewErr = nil
		beforePreview = nil
		camera = nil
		recognizer = &mockRecognizer{info: sharp(NewDetectionInfo())}
		listener = &mockListener{}
		clock = &mockTimeSource{now: time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)}

		cfg = DefaultConfig()
		cfg.ConnectTimeout = 100 * time.Millisecond
		cfg.ConnectRetryInterval = 5 * time.Millisecond
		cfg.Clock = clock
		autoStart = true
	})

	JustBeforeEach(func() {
		session = NewSession(cfg, opener, recognizer, listener)
		if autoStart {
			startErr = session.Start(context.Background())
		}
	})

	Describe("Start", func() {
		It("should start previewing", func() {
			Expect(startErr).NotTo(HaveOccurred())
			Expect(session.State()).To(Equal(Previewing))
			Expect(camera.isPreviewing()).To(BeTrue())
			Expect(camera.width).To(Equal(640))
			Expect(camera.height).To(Equal(480))
		})

		It("should arm one buffer large enough for a frame", func() {
			Expect(camera.armed()).To(Equal(1))
			Expect(camera.buffers[0]).To(HaveLen(640 * 480 * 3))
		})

		It("should leave the torch off", func() {
			Expect(camera.Torch()).To(BeFalse())
			Expect(session.Analytics().ManualTorchChanges).To(BeZero())
		})

		It("should trigger an initial autofocus without counting it", func() {
			Expect(camera.focusCount()).To(Equal(1))
			Expect(session.Analytics().AutoRefocus).To(BeZero())
		})

		It("should start in portrait", func() {
			Expect(session.Orientation()).To(Equal(Portrait))
		})

		When("the camera is busy at first", func() {
			BeforeEach(func() {
				failFirst = 2
			})

			It("should retry until it connects", func() {
				Expect(startErr).NotTo(HaveOccurred())
				Expect(opens).To(Equal(3))
			})
		})

		When("the camera never becomes available", func() {
			BeforeEach(func() {
				openErr = errors.New("in use by another app")
			})

			It("should fail with ErrCameraUnavailable", func() {
				Expect(startErr).To(MatchError(ErrCameraUnavailable))
				Expect(startErr).To(MatchError(openErr))
				Expect(opens).To(BeNumerically(">", 1))
				Expect(session.State()).To(Equal(Idle))
			})
		})

		When("the recognizer is not supported", func() {
			BeforeEach(func() {
				recognizer.unsupported = true
			})

			It("should fail with ErrUnsupportedHardware without opening the camera", func() {
				Expect(startErr).To(MatchError(ErrUnsupportedHardware))
				Expect(opens).To(BeZero())
			})
		})

		When("the context is cancelled while connecting", func() {
			BeforeEach(func() {
				openErr = errors.New("in use")
				cfg.ConnectTimeout = time.Hour
				autoStart = false
			})

			It("should stop retrying", func() {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				Expect(session.Start(ctx)).To(MatchError(context.Canceled))
				Expect(opens).To(Equal(1))
			})
		})
	})

	Describe("frames", func() {
		It("should count and drop nil frames", func() {
			session.OnFrame(nil)
			Expect(session.Analytics().NullFrames).To(Equal(int64(1)))
			Expect(recognizer.frameCount()).To(BeZero())
		})

		It("should pass the frame to the recognizer", func() {
			Expect(camera.deliver()).To(BeTrue())
			Expect(recognizer.frameCount()).To(Equal(1))

			frame := recognizer.frames[0]
			Expect(frame.Width).To(Equal(640))
			Expect(frame.Height).To(Equal(480))
			Expect(frame.Orientation).To(Equal(Portrait))
			Expect(frame.ScanExpiry).To(BeTrue())
		})

		It("should return the buffer after every frame", func() {
			for i := 0; i < 3; i++ {
				Expect(camera.deliver()).To(BeTrue())
				Expect(camera.armed()).To(Equal(1))
			}
			Expect(session.Analytics().FramesScanned).To(Equal(int64(3)))
		})

		It("should report the first frame once", func() {
			camera.deliver()
			camera.deliver()
			Expect(listener.firstFrameCount()).To(Equal(1))
		})

		It("should report edges for every evaluated frame", func() {
			camera.deliver()
			camera.deliver()
			Expect(listener.edges).To(HaveLen(2))
		})

		When("the recognizer fails", func() {
			BeforeEach(func() {
				recognizer.err = errors.New("model unavailable")
			})

			It("should count the failure and keep going", func() {
				Expect(camera.deliver()).To(BeTrue())
				Expect(camera.armed()).To(Equal(1))
				Expect(session.Analytics().RecognitionFailures).To(Equal(int64(1)))
				Expect(session.State()).To(Equal(Previewing))

				recognizer.mu.Lock()
				recognizer.err = nil
				recognizer.mu.Unlock()
				Expect(camera.deliver()).To(BeTrue())
				Expect(session.Analytics().RecognitionFailures).To(Equal(int64(1)))
			})
		})

		When("a frame is still being evaluated", func() {
			BeforeEach(func() {
				recognizer.entered = make(chan struct{}, 1)
				recognizer.gate = make(chan struct{})
			})

			It("should skip the new frame and hand its buffer back", func() {
				done := make(chan struct{})
				go func() {
					defer GinkgoRecover()
					camera.deliver()
					close(done)
				}()
				Eventually(recognizer.entered).Should(Receive())

				extra := make([]byte, 16)
				session.OnFrame(extra)
				Expect(session.Analytics().FramesSkipped).To(Equal(int64(1)))
				Expect(camera.armed()).To(Equal(1))

				close(recognizer.gate)
				Eventually(done).Should(BeClosed())
				Expect(camera.armed()).To(Equal(2))
				Expect(recognizer.frameCount()).To(Equal(1))
			})

			It("should discard the result when the session pauses meanwhile", func() {
				recognizer.setInfo(sharp(DetectionInfo{
					Complete:   true,
					Prediction: predictionOf("4111111111111111"),
				}))

				done := make(chan struct{})
				go func() {
					defer GinkgoRecover()
					camera.deliver()
					close(done)
				}()
				Eventually(recognizer.entered).Should(Receive())

				session.Pause()
				close(recognizer.gate)
				Eventually(done).Should(BeClosed())

				Expect(listener.detectedCards()).To(BeEmpty())
				Expect(session.State()).To(Equal(Paused))
			})
		})
	})

	Describe("focus", func() {
		BeforeEach(func() {
			recognizer.info = NewDetectionInfo()
			recognizer.info.FocusScore = 2
			recognizer.info.Complete = true
			recognizer.info.Prediction = predictionOf("4111111111111111")
		})

		It("should refocus instead of detecting on a blurry frame", func() {
			camera.finishFocus()
			camera.deliver()
			Expect(session.Analytics().AutoRefocus).To(Equal(int64(1)))
			Expect(camera.focusCount()).To(Equal(2))
			Expect(listener.detectedCards()).To(BeEmpty())
			Expect(session.Analytics().LastFocusScore).To(Equal(2.0))
		})

		It("should refocus on every blurry frame of an alternating sequence", func() {
			blurry := recognizer.info
			edgesOnly := sharp(DetectionInfo{TopEdge: true, BottomEdge: true, LeftEdge: true, RightEdge: true})
			edgesOnly.Prediction = NewDetectionInfo().Prediction

			for i := 0; i < 6; i++ {
				camera.finishFocus()
				if i%2 == 0 {
					recognizer.setInfo(blurry)
				} else {
					recognizer.setInfo(edgesOnly)
				}
				Expect(camera.deliver()).To(BeTrue())
			}

			analytics := session.Analytics()
			Expect(analytics.FramesScanned).To(Equal(int64(6)))
			Expect(analytics.AutoRefocus).To(Equal(int64(3)))
			Expect(analytics.LastFocusScore).To(Equal(10.0))
			Expect(listener.detectedCards()).To(BeEmpty())
			Expect(session.State()).To(Equal(Previewing))
		})

		It("should not stack focus cycles", func() {
			camera.deliver()
			camera.deliver()
			Expect(camera.focusCount()).To(Equal(1))
			Expect(session.Analytics().AutoRefocus).To(BeZero())
		})

		It("should count manual refocus separately", func() {
			camera.finishFocus()
			Expect(session.Refocus()).To(BeTrue())
			Expect(session.Refocus()).To(BeFalse())
			Expect(session.Analytics().ManualRefocus).To(Equal(int64(1)))
			Expect(session.Analytics().AutoRefocus).To(BeZero())
		})
	})

	Describe("detection", func() {
		When("a full number is read", func() {
			BeforeEach(func() {
				recognizer.info = sharp(DetectionInfo{
					Complete:    true,
					Prediction:  predictionOf("4111111111111111"),
					ExpiryMonth: 12,
					ExpiryYear:  2026,
				})
			})

			It("should report the card and pause", func() {
				camera.deliver()

				cards := listener.detectedCards()
				Expect(cards).To(HaveLen(1))
				Expect(cards[0].Number).To(Equal("4111111111111111"))
				Expect(cards[0].ExpiryMonth).To(Equal(12))
				Expect(cards[0].ExpiryYear).To(Equal(2026))
				Expect(cards[0].ScanID).NotTo(BeEmpty())

				Expect(session.State()).To(Equal(Detected))
				Expect(camera.isReleased()).To(BeTrue())
				Expect(camera.isPreviewing()).To(BeFalse())
			})

			It("should ignore frames after the detection", func() {
				camera.deliver()
				session.OnFrame(make([]byte, 16))
				Expect(recognizer.frameCount()).To(Equal(1))
				Expect(listener.detectedCards()).To(HaveLen(1))
			})
		})

		When("all edges are found without a number", func() {
			BeforeEach(func() {
				recognizer.info = sharp(DetectionInfo{
					TopEdge: true, BottomEdge: true, LeftEdge: true, RightEdge: true,
					Prediction: predictionOf(""),
				})
			})

			It("should keep scanning", func() {
				camera.deliver()
				Expect(listener.detectedCards()).To(BeEmpty())
				Expect(session.State()).To(Equal(Previewing))
			})

			When("only detection is wanted", func() {
				BeforeEach(func() {
					cfg.DetectOnly = true
				})

				It("should report an empty card", func() {
					camera.deliver()
					cards := listener.detectedCards()
					Expect(cards).To(HaveLen(1))
					Expect(cards[0].Number).To(BeEmpty())
					Expect(session.State()).To(Equal(Detected))
				})
			})
		})
	})

	Describe("ending while the preview starts", func() {
		BeforeEach(func() {
			beforePreview = func() { session.End() }
		})

		When("the preview starts anyway", func() {
			It("should report the session as ended", func() {
				Expect(startErr).To(MatchError(ErrSessionEnded))
				Expect(session.State()).To(Equal(Ended))
				Expect(camera.isReleased()).To(BeTrue())
			})
		})

		When("the preview fails on the released camera", func() {
			BeforeEach(func() {
				previewErr = ErrCameraReleased
			})

			It("should stay ended", func() {
				Expect(startErr).To(MatchError(ErrSessionEnded))
				Expect(session.State()).To(Equal(Ended))
				Expect(session.Start(context.Background())).To(MatchError(ErrSessionEnded))
			})
		})
	})

	Describe("without a listener", func() {
		BeforeEach(func() {
			autoStart = false
			recognizer.info = sharp(DetectionInfo{
				Complete:   true,
				Prediction: predictionOf("4111111111111111"),
			})
		})

		It("should still detect", func() {
			session = NewSession(cfg, opener, recognizer, nil)
			Expect(session.Start(context.Background())).To(Succeed())
			Expect(camera.deliver()).To(BeTrue())
			Expect(session.State()).To(Equal(Detected))
		})
	})

	Describe("preview failure", func() {
		BeforeEach(func() {
			previewErr = errors.New("preview broke")
		})

		It("should pause and release the camera", func() {
			Expect(startErr).To(MatchError(ContainSubstring("starting preview")))
			Expect(session.State()).To(Equal(Paused))
			Expect(camera.isReleased()).To(BeTrue())
		})
	})

	Describe("lifecycle", func() {
		It("should release the camera on pause", func() {
			Expect(session.ToggleTorch()).To(BeTrue())
			session.Pause()
			Expect(session.State()).To(Equal(Paused))
			Expect(camera.Torch()).To(BeFalse())
			Expect(camera.isPreviewing()).To(BeFalse())
			Expect(camera.isReleased()).To(BeTrue())
		})

		It("should ignore a second pause", func() {
			session.Pause()
			session.Pause()
			Expect(session.State()).To(Equal(Paused))
		})

		It("should reconnect on resume", func() {
			first := camera
			camera.deliver()
			session.Pause()

			clock.advance(10 * time.Second)
			Expect(session.Resume(context.Background())).To(Succeed())
			Expect(session.State()).To(Equal(Previewing))
			Expect(camera).NotTo(BeIdenticalTo(first))
			Expect(camera.armed()).To(Equal(1))
			Expect(session.Analytics().ElapsedSeconds).To(BeZero())
			Expect(session.Analytics().FramesScanned).To(Equal(int64(1)))

			camera.deliver()
			Expect(listener.firstFrameCount()).To(Equal(2))
		})

		It("should resume after a detection", func() {
			recognizer.setInfo(sharp(DetectionInfo{Complete: true, Prediction: predictionOf("4111111111111111")}))
			camera.deliver()
			Expect(session.State()).To(Equal(Detected))

			Expect(session.Resume(context.Background())).To(Succeed())
			Expect(session.State()).To(Equal(Previewing))
		})

		It("should end once", func() {
			session.End()
			session.End()
			Expect(session.State()).To(Equal(Ended))
			Expect(camera.isReleased()).To(BeTrue())
		})

		It("should refuse to start or resume after ending", func() {
			session.End()
			Expect(session.Start(context.Background())).To(MatchError(ErrSessionEnded))
			Expect(session.Resume(context.Background())).To(MatchError(ErrSessionEnded))
		})

		When("the session was never started", func() {
			BeforeEach(func() {
				autoStart = false
			})

			It("should refuse to resume", func() {
				Expect(session.Resume(context.Background())).To(MatchError(ErrNotStarted))
			})
		})

		It("should measure elapsed time from the preview start", func() {
			clock.advance(3 * time.Second)
			Expect(session.Analytics().ElapsedSeconds).To(Equal(3.0))
		})
	})

	Describe("torch", func() {
		It("should toggle and count", func() {
			Expect(session.ToggleTorch()).To(BeTrue())
			Expect(session.Torch()).To(BeTrue())
			Expect(session.ToggleTorch()).To(BeTrue())
			Expect(session.Torch()).To(BeFalse())
			Expect(session.Analytics().ManualTorchChanges).To(Equal(int64(2)))
		})

		It("should report false without a camera", func() {
			session.Pause()
			Expect(session.ToggleTorch()).To(BeFalse())
			Expect(session.Analytics().ManualTorchChanges).To(BeZero())
		})

		It("should report false when the camera refuses", func() {
			camera.mu.Lock()
			camera.torchErr = errors.New("no flash")
			camera.mu.Unlock()
			Expect(session.ToggleTorch()).To(BeFalse())
			Expect(session.Analytics().ManualTorchChanges).To(BeZero())
		})
	})

	Describe("orientation", func() {
		It("should snap to landscape and hold through dead zones", func() {
			session.OnOrientationSignal(95)
			Expect(session.Orientation()).To(Equal(LandscapeLeft))

			session.OnOrientationSignal(40)
			Expect(session.Orientation()).To(Equal(LandscapeLeft))
		})

		It("should ignore negative signals", func() {
			session.OnOrientationSignal(180)
			session.OnOrientationSignal(-1)
			Expect(session.Orientation()).To(Equal(PortraitUpsideDown))
		})

		It("should pass the orientation to the recognizer", func() {
			session.OnOrientationSignal(270)
			camera.deliver()
			Expect(recognizer.frames[0].Orientation).To(Equal(LandscapeRight))
		})

		When("the display has a rotational offset", func() {
			BeforeEach(func() {
				cfg.RotationalOffset = 90
			})

			It("should add the offset", func() {
				session.OnOrientationSignal(0)
				Expect(session.Orientation()).To(Equal(LandscapeLeft))
				session.OnOrientationSignal(275)
				Expect(session.Orientation()).To(Equal(Portrait))
			})
		})

		It("should size the guide frame for the orientation", func() {
			Expect(session.GuideFrame()).To(Equal(cardGuide(Portrait, 640, 480)))
			session.OnOrientationSignal(90)
			Expect(session.GuideFrame()).To(Equal(cardGuide(LandscapeLeft, 640, 480)))
		})
	})
})
