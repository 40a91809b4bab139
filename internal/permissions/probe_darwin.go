package permissions

/*
#cgo CFLAGS: -x objective-c -fmodules
#cgo LDFLAGS: -framework AVFoundation -framework ApplicationServices

#import <AVFoundation/AVFoundation.h>
#import <ApplicationServices/ApplicationServices.h>

int check_microphone_permission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

int check_accessibility_permission() {
    return AXIsProcessTrusted() ? 1 : 0;
}
*/
import "C"

func microphoneStatus() Status {
	return Status(C.check_microphone_permission())
}

func accessibilityStatus() Status {
	if C.check_accessibility_permission() == 1 {
		return Authorized
	}
	return Denied
}
